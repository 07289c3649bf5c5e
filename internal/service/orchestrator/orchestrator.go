package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/afero"

	"github.com/oshokin/extbuild/internal/buildpath"
	"github.com/oshokin/extbuild/internal/config"
	"github.com/oshokin/extbuild/internal/extension"
	"github.com/oshokin/extbuild/internal/invocation"
	"github.com/oshokin/extbuild/internal/logger"
)

// BuildType is the generator build type.
type BuildType string

const (
	// BuildTypeDebug is used when the debug flag is set.
	BuildTypeDebug BuildType = "Debug"
	// BuildTypeRelease is used otherwise.
	BuildTypeRelease BuildType = "Release"
)

// DefaultDirMode is used for created build directories.
const DefaultDirMode os.FileMode = 0o755

// ErrGeneratorNotFound is returned when the generator executable cannot be resolved.
var ErrGeneratorNotFound = errors.New("cmake executable not found. Set " +
	config.EnvGeneratorExecutable + " environment or update your path")

// StandardBuilder compiles and links a standard extension.
type StandardBuilder interface {
	Build(ctx context.Context, ext *extension.StandardExtension) error
}

// BuildConfiguration is computed fresh for every native target and never reused.
type BuildConfiguration struct {
	// OutputDirectory is where the generator writes the library.
	OutputDirectory string
	// BuildType is Debug or Release.
	BuildType BuildType
	// GeneratorArguments is the configure command, program first.
	GeneratorArguments []string
	// Environment is the child environment snapshot.
	Environment map[string]string
}

// Options wires the orchestrator's collaborators.
type Options struct {
	// Config is the validated project file.
	Config *config.Config
	// Env is the startup environment snapshot.
	Env config.Environment
	// Layout names the build directories.
	Layout buildpath.Layout
	// Debug selects the Debug build type.
	Debug bool
	// Runner executes child processes.
	Runner invocation.Runner
	// Standard builds non-native descriptors.
	Standard StandardBuilder
	// Fs is used for build directory cleanup and creation; nil means the OS filesystem.
	Fs afero.Fs
	// LookPath searches for the generator; nil means exec.LookPath.
	LookPath func(file string) (string, error)
	// Generator is an already resolved generator path; empty means resolve in Prepare.
	Generator string
}

// Orchestrator implements the extension build step.
type Orchestrator struct {
	opts      Options
	fs        afero.Fs
	lookPath  func(string) (string, error)
	generator string
	prepared  bool
}

// New creates an orchestrator. Nothing is resolved or touched until Prepare.
func New(opts *Options) *Orchestrator {
	o := &Orchestrator{
		opts:      *opts,
		fs:        opts.Fs,
		lookPath:  opts.LookPath,
		generator: opts.Generator,
	}

	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}

	if o.lookPath == nil {
		o.lookPath = exec.LookPath
	}

	return o
}

// ResolveGenerator finds the generator executable once and caches it.
func (o *Orchestrator) ResolveGenerator() (string, error) {
	if o.generator != "" {
		return o.generator, nil
	}

	path, err := FindGenerator(o.opts.Config, o.opts.Env, o.lookPath)
	if err != nil {
		return "", err
	}

	o.generator = path

	return o.generator, nil
}

// FindGenerator returns the override variable verbatim when it is set, else searches PATH.
// An override that is set but empty counts as not found. It never starts a process.
func FindGenerator(
	cfg *config.Config,
	env config.Environment,
	lookPath func(string) (string, error),
) (string, error) {
	if override, ok := env.GeneratorOverride(); ok {
		if override == "" {
			return "", ErrGeneratorNotFound
		}

		return override, nil
	}

	if lookPath == nil {
		lookPath = exec.LookPath
	}

	path, err := lookPath(cfg.Generator.Executable)
	if err != nil || path == "" {
		return "", ErrGeneratorNotFound
	}

	return path, nil
}

// Prepare checks the generator precondition and then removes the top-level build directory.
// It runs at most once per orchestrator.
func (o *Orchestrator) Prepare(ctx context.Context) error {
	if o.prepared {
		return nil
	}

	generator, err := o.ResolveGenerator()
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Resolved generator", "path", generator)

	root := o.opts.Layout.Root
	logger.InfoKV(ctx, "Removing previous build output", "dir", root)

	if err = o.fs.RemoveAll(root); err != nil {
		return fmt.Errorf("remove build directory %s: %w", root, err)
	}

	o.prepared = true

	return nil
}

// BuildExtensions builds descriptors strictly in order and stops at the first failure.
func (o *Orchestrator) BuildExtensions(ctx context.Context, descriptors []extension.Descriptor) error {
	if err := o.Prepare(ctx); err != nil {
		return err
	}

	for _, descriptor := range descriptors {
		if err := o.BuildExtension(ctx, descriptor); err != nil {
			return fmt.Errorf("build extension %s: %w", descriptor.Name(), err)
		}
	}

	return nil
}

// BuildExtension builds one descriptor. Prepare must have succeeded.
func (o *Orchestrator) BuildExtension(ctx context.Context, descriptor extension.Descriptor) error {
	if err := o.Prepare(ctx); err != nil {
		return err
	}

	ctx = logger.WithFields(ctx, "extension", descriptor.Name(), "kind", string(descriptor.Kind()))

	return descriptor.Visit(ctx, dispatcher{o})
}

// Configuration computes the build configuration of a native target.
func (o *Orchestrator) Configuration(target *extension.NativeTarget) (*BuildConfiguration, error) {
	generator, err := o.ResolveGenerator()
	if err != nil {
		return nil, err
	}

	outputDir, err := o.opts.Layout.OutputDir(target.Name())
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	buildType := BuildTypeRelease
	if o.opts.Debug {
		buildType = BuildTypeDebug
	}

	args := []string{
		generator,
		target.SourceDir(),
		"-DCMAKE_LIBRARY_OUTPUT_DIRECTORY=" + outputDir,
		"-DCMAKE_BUILD_TYPE=" + string(buildType),
	}
	args = append(args, o.opts.Env.ExtraGeneratorArguments()...)

	return &BuildConfiguration{
		OutputDirectory:    outputDir,
		BuildType:          buildType,
		GeneratorArguments: args,
		Environment:        o.opts.Env.ChildSnapshot(o.opts.Config.ChildEnv),
	}, nil
}

// BuildArguments is the build step command for a native target, program first.
func (o *Orchestrator) BuildArguments(target *extension.NativeTarget) []string {
	jobs := "-j"
	if n := o.opts.Config.Generator.Jobs; n > 0 {
		jobs += strconv.Itoa(n)
	}

	return []string{o.opts.Config.Generator.BuildTool, jobs, target.Name()}
}

// buildNative runs the configure and build steps of one native target in the shared build-temp tree.
func (o *Orchestrator) buildNative(ctx context.Context, target *extension.NativeTarget) error {
	cfg, err := o.Configuration(target)
	if err != nil {
		return err
	}

	buildTemp := o.opts.Layout.TempDir()
	if err = o.fs.MkdirAll(buildTemp, DefaultDirMode); err != nil {
		return fmt.Errorf("create build temp %s: %w", buildTemp, err)
	}

	env := invocation.EnvList(cfg.Environment)

	logger.InfoKV(ctx, "Configuring native target",
		"source_dir", target.SourceDir(),
		"output_dir", cfg.OutputDirectory,
		"build_type", string(cfg.BuildType))

	configure := &invocation.Invocation{
		Executable: cfg.GeneratorArguments[0],
		Args:       cfg.GeneratorArguments[1:],
		Dir:        buildTemp,
		Env:        env,
	}
	if err = o.opts.Runner.Run(ctx, configure); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	buildArgs := o.BuildArguments(target)

	logger.InfoKV(ctx, "Building native target", "command", buildArgs)

	build := &invocation.Invocation{
		Executable: buildArgs[0],
		Args:       buildArgs[1:],
		Dir:        buildTemp,
		Env:        env,
	}
	if err = o.opts.Runner.Run(ctx, build); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	return nil
}

// dispatcher routes descriptors to the native or standard path.
type dispatcher struct {
	o *Orchestrator
}

func (d dispatcher) VisitNative(ctx context.Context, target *extension.NativeTarget) error {
	return d.o.buildNative(ctx, target)
}

func (d dispatcher) VisitStandard(ctx context.Context, ext *extension.StandardExtension) error {
	logger.InfoKV(ctx, "Building standard extension")

	return d.o.opts.Standard.Build(ctx, ext)
}
