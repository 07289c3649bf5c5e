package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/extbuild/internal/buildpath"
	"github.com/oshokin/extbuild/internal/extension"
)

// Config is the project file: what to build and where outputs go.
type Config struct {
	// PackageName is the distribution name; "{toolkit}" is replaced with the toolkit suffix.
	PackageName string `yaml:"package_name"`
	// BuildDir is the top-level build output directory, wiped at the start of every build.
	BuildDir string `yaml:"build_dir"`
	// DistDir receives distribution archives.
	DistDir string `yaml:"dist_dir"`
	// PlatformTag overrides the detected platform tag.
	PlatformTag string `yaml:"platform_tag,omitempty"`
	// InterpreterVersion is "major.minor"; empty means ask Interpreter.
	InterpreterVersion string `yaml:"interpreter_version,omitempty"`
	// Interpreter is the binding-language interpreter used to detect the version.
	Interpreter string `yaml:"interpreter"`
	// ExtensionSuffix overrides the compiled module suffix.
	ExtensionSuffix string `yaml:"extension_suffix,omitempty"`
	// ModuleRoot is the directory wildcard module names are derived relative to.
	ModuleRoot string `yaml:"module_root,omitempty"`
	// Generator configures the external meta-build tool.
	Generator Generator `yaml:"generator"`
	// Extensions are the build targets, processed in order.
	Extensions []Extension `yaml:"extensions"`
	// Headers configures header installation.
	Headers Headers `yaml:"headers"`
	// ChildEnv are defaults exported to child processes; the process environment wins.
	ChildEnv map[string]string `yaml:"child_env,omitempty"`

	// Dir is the directory relative paths are resolved against. It is not persisted.
	Dir string `yaml:"-"`
}

// Generator configures the configure and build steps.
type Generator struct {
	// Executable is searched on PATH unless the CMAKE_EXE override is set.
	Executable string `yaml:"executable"`
	// BuildTool runs the build step in the configured tree.
	BuildTool string `yaml:"build_tool"`
	// Jobs is the parallel job count for the build step; 0 leaves it to the tool.
	Jobs int `yaml:"jobs"`
}

// Headers configures the header installer.
type Headers struct {
	// Roots are header trees copied with their structure preserved.
	Roots []string `yaml:"roots"`
	// Suffix selects header files.
	Suffix string `yaml:"suffix"`
	// InstallDir is where the trees are copied to.
	InstallDir string `yaml:"install_dir"`
}

// Extension is one build target entry of the project file.
type Extension struct {
	Name             string   `yaml:"name"`
	Kind             string   `yaml:"kind"`
	SourceDir        string   `yaml:"source_dir,omitempty"`
	Sources          []string `yaml:"sources,omitempty"`
	IncludeDirs      []string `yaml:"include_dirs,omitempty"`
	LibraryDirs      []string `yaml:"library_dirs,omitempty"`
	LibraryBuildDirs []string `yaml:"library_build_dirs,omitempty"`
	Libraries        []string `yaml:"libraries,omitempty"`
	Language         string   `yaml:"language,omitempty"`
	ExtraCompileArgs []string `yaml:"extra_compile_args,omitempty"`
	ExtraLinkArgs    []string `yaml:"extra_link_args,omitempty"`
}

const (
	// DefaultConfigFilename is the default project file name.
	DefaultConfigFilename = "extbuild.yaml"

	// DefaultGenerator is the meta-build tool searched on PATH.
	DefaultGenerator = "cmake"

	// DefaultBuildTool runs the build step.
	DefaultBuildTool = "make"

	// DefaultHeaderSuffix selects header files.
	DefaultHeaderSuffix = ".h"

	// DefaultInterpreter is asked for its version when none is configured.
	DefaultInterpreter = "python3"

	// DefaultDistDir receives distribution archives.
	DefaultDistDir = "dist"

	// DefaultFilePermissions is the file permission for written project files.
	DefaultFilePermissions = 0o644

	// toolkitPlaceholder is replaced in PackageName.
	toolkitPlaceholder = "{toolkit}"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPackageNameRequired is returned when the package name is missing.
	errPackageNameRequired = errors.New("package_name must be provided")
	// errInvalidExtension is returned for malformed extension entries.
	errInvalidExtension = errors.New("invalid extension")
	// errInvalidJobs is returned for a negative job count.
	errInvalidJobs = errors.New("generator.jobs must not be negative")
)

// Load reads the project file at path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal project file: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	cfg.Dir = dir

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal project file: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.PackageName) == "" {
		return errPackageNameRequired
	}

	if cfg.BuildDir == "" {
		cfg.BuildDir = buildpath.DefaultRoot
	}

	if cfg.DistDir == "" {
		cfg.DistDir = DefaultDistDir
	}

	if cfg.Interpreter == "" {
		cfg.Interpreter = DefaultInterpreter
	}

	if cfg.InterpreterVersion != "" {
		if _, err := buildpath.ParseVersion(cfg.InterpreterVersion); err != nil {
			return err
		}
	}

	if cfg.Generator.Executable == "" {
		cfg.Generator.Executable = DefaultGenerator
	}

	if cfg.Generator.BuildTool == "" {
		cfg.Generator.BuildTool = DefaultBuildTool
	}

	if cfg.Generator.Jobs < 0 {
		return errInvalidJobs
	}

	if cfg.Headers.Suffix == "" {
		cfg.Headers.Suffix = DefaultHeaderSuffix
	}

	if cfg.Headers.InstallDir == "" {
		cfg.Headers.InstallDir = filepath.Join("install", "include")
	}

	return validateExtensions(cfg.Extensions)
}

// validateExtensions checks kinds, required fields and name uniqueness.
func validateExtensions(extensions []Extension) error {
	seen := make(map[string]struct{}, len(extensions))

	for i := range extensions {
		ext := &extensions[i]

		if ext.Name == "" {
			return fmt.Errorf("extension #%d: name is empty: %w", i+1, errInvalidExtension)
		}

		if _, dup := seen[ext.Name]; dup {
			return fmt.Errorf("extension %s: duplicate name: %w", ext.Name, errInvalidExtension)
		}

		seen[ext.Name] = struct{}{}

		switch extension.Kind(ext.Kind) {
		case extension.KindNative:
			if ext.SourceDir == "" {
				return fmt.Errorf("extension %s: source_dir is required: %w", ext.Name, errInvalidExtension)
			}
		case extension.KindStandard:
			if len(ext.Sources) == 0 {
				return fmt.Errorf("extension %s: sources are required: %w", ext.Name, errInvalidExtension)
			}

			if ext.Language == "" {
				ext.Language = "c"
			}
		default:
			return fmt.Errorf("extension %s: unknown kind %q: %w", ext.Name, ext.Kind, errInvalidExtension)
		}
	}

	return nil
}

// Path resolves p against the project directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}

	return filepath.Join(c.Dir, p)
}

// ModuleRootDir returns the resolved module root; empty means the project directory.
func (c *Config) ModuleRootDir() string {
	if c.ModuleRoot == "" {
		return c.Dir
	}

	return c.Path(c.ModuleRoot)
}

// HeaderRoots returns the header roots resolved against the project directory.
func (c *Config) HeaderRoots() []string {
	roots := make([]string, 0, len(c.Headers.Roots))
	for _, root := range c.Headers.Roots {
		roots = append(roots, c.Path(root))
	}

	return roots
}

// ResolvedPackageName substitutes the toolkit suffix into PackageName.
func (c *Config) ResolvedPackageName(toolkit string) string {
	return strings.ReplaceAll(c.PackageName, toolkitPlaceholder, toolkit)
}

// Descriptors converts the extension entries into descriptors, keeping their order.
func (c *Config) Descriptors() ([]extension.Descriptor, error) {
	descriptors := make([]extension.Descriptor, 0, len(c.Extensions))

	for _, ext := range c.Extensions {
		switch extension.Kind(ext.Kind) {
		case extension.KindNative:
			target, err := extension.NewNativeTarget(ext.Name, c.Path(ext.SourceDir))
			if err != nil {
				return nil, err
			}

			descriptors = append(descriptors, target)
		case extension.KindStandard:
			descriptors = append(descriptors, extension.NewStandardExtension(ext.Name, extension.StandardOptions{
				Sources:          c.paths(ext.Sources),
				IncludeDirs:      c.paths(ext.IncludeDirs),
				LibraryDirs:      c.paths(ext.LibraryDirs),
				LibraryBuildDirs: ext.LibraryBuildDirs,
				Libraries:        ext.Libraries,
				Language:         ext.Language,
				ExtraCompileArgs: ext.ExtraCompileArgs,
				ExtraLinkArgs:    ext.ExtraLinkArgs,
			}))
		default:
			return nil, fmt.Errorf("extension %s: unknown kind %q: %w", ext.Name, ext.Kind, errInvalidExtension)
		}
	}

	return descriptors, nil
}

func (c *Config) paths(in []string) []string {
	if in == nil {
		return nil
	}

	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, c.Path(p))
	}

	return out
}
