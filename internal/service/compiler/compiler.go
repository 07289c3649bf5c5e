package compiler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/oshokin/extbuild/internal/buildpath"
	"github.com/oshokin/extbuild/internal/config"
	"github.com/oshokin/extbuild/internal/extension"
	"github.com/oshokin/extbuild/internal/invocation"
	"github.com/oshokin/extbuild/internal/logger"
)

const (
	// LanguageC selects the C compiler driver.
	LanguageC = "c"
	// LanguageCXX selects the C++ compiler driver.
	LanguageCXX = "c++"

	defaultCC  = "cc"
	defaultCXX = "c++"

	objectSuffix = ".o"
	dirMode      = 0o755
)

// errNoSources is returned when the source patterns of an extension match nothing.
var errNoSources = errors.New("no source files matched")

// Options wires the builder's collaborators.
type Options struct {
	// Env is the startup environment snapshot; CC and CXX are read from it.
	Env config.Environment
	// ChildEnv are defaults added to the child environment.
	ChildEnv map[string]string
	// Layout names the build directories.
	Layout buildpath.Layout
	// ModuleRoot is the directory wildcard module names are relative to.
	ModuleRoot string
	// Debug compiles with debug information and without optimization.
	Debug bool
	// Runner executes the compiler driver.
	Runner invocation.Runner
	// Fs is used for source globbing and object directories; nil means the OS filesystem.
	Fs afero.Fs
}

// Module is one compiled module of a standard extension.
type Module struct {
	// Name is the dotted module name.
	Name string
	// Sources are the source files compiled into the module.
	Sources []string
	// Compile holds one invocation per source file.
	Compile []*invocation.Invocation
	// Link produces the shared module.
	Link *invocation.Invocation
	// Output is the final module path.
	Output string
}

// Builder compiles and links standard extensions with a C or C++ compiler driver.
type Builder struct {
	opts Options
	fs   afero.Fs
}

// New creates a builder.
func New(opts *Options) *Builder {
	b := &Builder{
		opts: *opts,
		fs:   opts.Fs,
	}

	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}

	return b
}

// Build compiles every module of ext and links it into the library build directory.
func (b *Builder) Build(ctx context.Context, ext *extension.StandardExtension) error {
	modules, err := b.Plan(ext)
	if err != nil {
		return err
	}

	for _, module := range modules {
		if err = b.buildModule(ctx, module); err != nil {
			return fmt.Errorf("module %s: %w", module.Name, err)
		}
	}

	return nil
}

// Plan expands the sources of ext and computes its compile and link invocations.
// It only reads the filesystem.
func (b *Builder) Plan(ext *extension.StandardExtension) ([]*Module, error) {
	opts := ext.Options()

	sources, err := b.expandSources(opts.Sources)
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(opts.Sources, ", "), errNoSources)
	}

	env := invocation.EnvList(b.opts.Env.ChildSnapshot(b.opts.ChildEnv))
	driver := b.compilerDriver(opts.Language)

	if !ext.IsWildcard() {
		return []*Module{b.module(ext.Name(), sources, &opts, driver, env)}, nil
	}

	modules := make([]*Module, 0, len(sources))
	for _, source := range sources {
		modules = append(modules, b.module(b.moduleName(source), []string{source}, &opts, driver, env))
	}

	return modules, nil
}

func (b *Builder) buildModule(ctx context.Context, module *Module) error {
	ctx = logger.WithFields(ctx, "module", module.Name)

	for _, compile := range module.Compile {
		objectDir := filepath.Dir(compile.Args[len(compile.Args)-1])
		if err := b.fs.MkdirAll(objectDir, dirMode); err != nil {
			return fmt.Errorf("create object directory %s: %w", objectDir, err)
		}
	}

	logger.InfoKV(ctx, "Compiling module", "sources", len(module.Sources))

	for _, compile := range module.Compile {
		if err := b.opts.Runner.Run(ctx, compile); err != nil {
			return fmt.Errorf("compile: %w", err)
		}
	}

	outputDir := filepath.Dir(module.Output)
	if err := b.fs.MkdirAll(outputDir, dirMode); err != nil {
		return fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	logger.InfoKV(ctx, "Linking module", "output", module.Output)

	if err := b.opts.Runner.Run(ctx, module.Link); err != nil {
		return fmt.Errorf("link: %w", err)
	}

	return nil
}

// module computes the invocations of one module. The object file path is always the last compile argument.
func (b *Builder) module(
	name string,
	sources []string,
	opts *extension.StandardOptions,
	driver string,
	env []string,
) *Module {
	objectDir := filepath.Join(b.opts.Layout.TempDir(), filepath.FromSlash(strings.ReplaceAll(name, ".", "/")))

	module := &Module{
		Name:    name,
		Sources: sources,
		Compile: make([]*invocation.Invocation, 0, len(sources)),
		Output:  b.opts.Layout.ModulePath(name),
	}

	objects := objectPaths(objectDir, sources)

	for i, source := range sources {
		object := objects[i]

		args := []string{"-fPIC"}
		args = append(args, b.optimizationArgs()...)

		for _, dir := range opts.IncludeDirs {
			args = append(args, "-I"+dir)
		}

		args = append(args, opts.ExtraCompileArgs...)
		args = append(args, "-c", source, "-o", object)

		module.Compile = append(module.Compile, &invocation.Invocation{
			Executable: driver,
			Args:       args,
			Env:        env,
		})
	}

	args := []string{"-shared"}
	args = append(args, objects...)

	for _, dir := range b.libraryDirs(opts) {
		args = append(args, "-L"+dir)
	}

	for _, lib := range opts.Libraries {
		args = append(args, "-l"+lib)
	}

	args = append(args, opts.ExtraLinkArgs...)
	args = append(args, "-o", module.Output)

	module.Link = &invocation.Invocation{
		Executable: driver,
		Args:       args,
		Env:        env,
	}

	return module
}

// objectPaths mirrors the sources below their common directory, so equal base names in
// different directories get distinct objects.
func objectPaths(objectDir string, sources []string) []string {
	base := commonDir(sources)
	objects := make([]string, 0, len(sources))

	for _, source := range sources {
		rel, ok := within(base, source)
		if !ok {
			rel = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(source)), "/")
		}

		rel = strings.TrimSuffix(rel, filepath.Ext(rel))
		objects = append(objects, filepath.Join(objectDir, filepath.FromSlash(rel)+objectSuffix))
	}

	return objects
}

// commonDir is the deepest directory containing every source; "" when there is none.
func commonDir(sources []string) string {
	if len(sources) == 0 {
		return ""
	}

	dir := filepath.Dir(sources[0])

	for _, source := range sources[1:] {
		for {
			if _, ok := within(dir, source); ok {
				break
			}

			parent := filepath.Dir(dir)
			if parent == dir {
				return ""
			}

			dir = parent
		}
	}

	return dir
}

// within returns path relative to dir when path lies below dir.
func within(dir, path string) (string, bool) {
	if dir == "" {
		return "", false
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return filepath.ToSlash(rel), true
}

// libraryDirs returns the verbatim library directories followed by the resolved build directories.
func (b *Builder) libraryDirs(opts *extension.StandardOptions) []string {
	dirs := slices.Clone(opts.LibraryDirs)

	for _, logical := range opts.LibraryBuildDirs {
		dirs = append(dirs, b.opts.Layout.Dir(logical))
	}

	return dirs
}

func (b *Builder) optimizationArgs() []string {
	if b.opts.Debug {
		return []string{"-g", "-O0"}
	}

	return []string{"-O2"}
}

// compilerDriver picks CXX or CC from the environment.
func (b *Builder) compilerDriver(language string) string {
	if language == LanguageCXX {
		if cxx := b.opts.Env.Get(config.EnvCXX); cxx != "" {
			return cxx
		}

		return defaultCXX
	}

	if cc := b.opts.Env.Get(config.EnvCC); cc != "" {
		return cc
	}

	return defaultCC
}

// expandSources resolves glob patterns in order, dropping duplicates. Plain paths are kept as they are.
func (b *Builder) expandSources(patterns []string) ([]string, error) {
	var (
		sources []string
		seen    = make(map[string]struct{})
	)

	for _, pattern := range patterns {
		matches := []string{pattern}

		if strings.ContainsAny(pattern, "*?[") {
			var err error

			matches, err = afero.Glob(b.fs, pattern)
			if err != nil {
				return nil, fmt.Errorf("expand %s: %w", pattern, err)
			}

			slices.Sort(matches)
		}

		for _, match := range matches {
			if _, ok := seen[match]; ok {
				continue
			}

			seen[match] = struct{}{}
			sources = append(sources, match)
		}
	}

	return sources, nil
}

// moduleName derives a dotted module name from a source path relative to the module root.
func (b *Builder) moduleName(source string) string {
	name := strings.TrimSuffix(source, filepath.Ext(source))

	if b.opts.ModuleRoot != "" {
		if rel, err := filepath.Rel(b.opts.ModuleRoot, name); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		} else {
			name = filepath.Base(name)
		}
	} else if filepath.IsAbs(name) {
		name = filepath.Base(name)
	}

	return strings.ReplaceAll(filepath.ToSlash(name), "/", ".")
}
