package config

import (
	"maps"
	"os"
	"strings"
)

// Environment variables read by the build driver.
const (
	// EnvGeneratorExecutable overrides the generator search.
	EnvGeneratorExecutable = "CMAKE_EXE"
	// EnvGeneratorArguments holds whitespace-separated extra generator arguments.
	EnvGeneratorArguments = "CMAKE_COMMON_VARIABLES"
	// EnvToolkitVersion feeds the package name suffix.
	EnvToolkitVersion = "CUDA"
	// EnvReleaseVersion is the release version, leading "v" stripped.
	EnvReleaseVersion = "GIT_DESCRIBE_TAG"
	// EnvHeaderSource points child build scripts at the API header.
	EnvHeaderSource = "RMM_HEADER"
	// EnvNativeIncludeDir points child build scripts at the native include tree.
	EnvNativeIncludeDir = "CUDF_INCLUDE_DIR"
	// EnvCC and EnvCXX select compiler drivers for standard extensions.
	EnvCC  = "CC"
	EnvCXX = "CXX"
)

const (
	defaultToolkitVersion = "unknown"
	defaultReleaseVersion = "0.0.0.dev0"
)

// Environment is a read-only snapshot of process environment variables,
// taken once at startup and passed explicitly to the build steps.
type Environment struct {
	vars map[string]string
}

// EnvironmentFromOS snapshots the current process environment.
func EnvironmentFromOS() Environment {
	vars := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}

		vars[key] = value
	}

	return Environment{vars: vars}
}

// NewEnvironment builds a snapshot from a map; the map is copied.
func NewEnvironment(vars map[string]string) Environment {
	return Environment{vars: maps.Clone(vars)}
}

// Lookup returns a variable and whether it is set.
func (e Environment) Lookup(key string) (string, bool) {
	value, ok := e.vars[key]
	return value, ok
}

// Get returns a variable or "".
func (e Environment) Get(key string) string {
	return e.vars[key]
}

// Snapshot returns a fresh copy of all variables.
func (e Environment) Snapshot() map[string]string {
	if e.vars == nil {
		return make(map[string]string)
	}

	return maps.Clone(e.vars)
}

// ChildSnapshot is Snapshot with defaults added for variables the process does not set.
func (e Environment) ChildSnapshot(defaults map[string]string) map[string]string {
	snapshot := e.Snapshot()

	for key, value := range defaults {
		if _, ok := snapshot[key]; !ok {
			snapshot[key] = value
		}
	}

	return snapshot
}

// GeneratorOverride returns the generator executable override and whether it is set at all.
func (e Environment) GeneratorOverride() (string, bool) {
	return e.Lookup(EnvGeneratorExecutable)
}

// ExtraGeneratorArguments splits the extra generator arguments on whitespace, dropping empty tokens.
func (e Environment) ExtraGeneratorArguments() []string {
	return strings.Fields(e.Get(EnvGeneratorArguments))
}

// ToolkitSuffix joins the first two dot-separated components of the toolkit version:
// "10.0.130" becomes "100". Unset yields "unknown".
func (e Environment) ToolkitSuffix() string {
	toolkit, ok := e.Lookup(EnvToolkitVersion)
	if !ok {
		toolkit = defaultToolkitVersion
	}

	parts := strings.Split(toolkit, ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}

	return strings.Join(parts, "")
}

// ReleaseVersion returns the release version with leading "v" characters stripped.
func (e Environment) ReleaseVersion() string {
	tag, ok := e.Lookup(EnvReleaseVersion)
	if !ok {
		tag = defaultReleaseVersion
	}

	return strings.TrimLeft(tag, "v")
}
