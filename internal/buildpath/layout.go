package buildpath

import "path/filepath"

// Layout fixes the inputs of Name for one invocation and derives every build directory from them.
type Layout struct {
	// Root is the top-level build directory.
	Root string
	// PlatformTag is the platform part of directory names, e.g. "linux-x86_64".
	PlatformTag string
	// Version is the interpreter version part of directory names.
	Version Version
	// ExtensionSuffix is appended to compiled module names.
	ExtensionSuffix string
}

// Dir returns the qualified directory for a logical name.
func (l Layout) Dir(logical string) string {
	return NameIn(l.Root, logical, l.PlatformTag, l.Version)
}

// LibDir is where native libraries and binding modules land.
func (l Layout) LibDir() string {
	return l.Dir(LibDir)
}

// TempDir is the shared build-temp directory.
func (l Layout) TempDir() string {
	return l.Dir(TempDir)
}

// ModulePath is the final path of the compiled module with the given dotted name.
func (l Layout) ModulePath(moduleName string) string {
	return ModulePath(l.LibDir(), moduleName, l.ExtensionSuffix)
}

// OutputDir is the absolute directory the compiled module with the given name lands in.
func (l Layout) OutputDir(moduleName string) (string, error) {
	return filepath.Abs(filepath.Dir(l.ModulePath(moduleName)))
}
