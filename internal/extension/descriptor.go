package extension

import (
	"context"
	"fmt"
	"path/filepath"
)

// Kind names the two descriptor variants.
type Kind string

const (
	// KindNative is a library built by the external generator.
	KindNative Kind = "native"
	// KindStandard is a binding module compiled by the standard path.
	KindStandard Kind = "standard"
)

// Visitor handles each descriptor variant.
type Visitor interface {
	VisitNative(ctx context.Context, target *NativeTarget) error
	VisitStandard(ctx context.Context, ext *StandardExtension) error
}

// Descriptor is a build target. Only this package implements it.
type Descriptor interface {
	// Name is the target name; for native targets it matches the generator's target.
	Name() string
	// Kind reports which variant this is.
	Kind() Kind
	// Visit calls the Visitor method matching the variant.
	Visit(ctx context.Context, v Visitor) error

	sealed()
}

// NativeTarget is a library built through the external generator.
// It is immutable after construction.
type NativeTarget struct {
	name      string
	sourceDir string
}

// NewNativeTarget normalizes sourceDir to an absolute path. The directory is not checked.
func NewNativeTarget(name, sourceDir string) (*NativeTarget, error) {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory of %s: %w", name, err)
	}

	return &NativeTarget{
		name:      name,
		sourceDir: abs,
	}, nil
}

// Name returns the generator target name.
func (t *NativeTarget) Name() string { return t.name }

// Kind returns KindNative.
func (t *NativeTarget) Kind() Kind { return KindNative }

// SourceDir returns the absolute directory holding the generator project.
func (t *NativeTarget) SourceDir() string { return t.sourceDir }

// Visit calls v.VisitNative.
func (t *NativeTarget) Visit(ctx context.Context, v Visitor) error {
	return v.VisitNative(ctx, t)
}

func (*NativeTarget) sealed() {}

// StandardOptions carries compiler and linker settings of a standard extension.
type StandardOptions struct {
	// Sources are source files or glob patterns.
	Sources []string
	// IncludeDirs are passed as -I.
	IncludeDirs []string
	// LibraryDirs are passed as -L verbatim.
	LibraryDirs []string
	// LibraryBuildDirs are logical build directory names (e.g. "lib") resolved
	// through buildpath at build time and passed as -L.
	LibraryBuildDirs []string
	// Libraries are passed as -l.
	Libraries []string
	// Language selects the compiler driver: "c" or "c++".
	Language string
	// ExtraCompileArgs are appended to every compile command.
	ExtraCompileArgs []string
	// ExtraLinkArgs are appended to the link command.
	ExtraLinkArgs []string
}

// WildcardName makes a standard extension expand to one module per source file.
const WildcardName = "*"

// StandardExtension is a binding module compiled and linked directly.
type StandardExtension struct {
	name string
	opts StandardOptions
}

// NewStandardExtension builds a standard descriptor; slices are copied.
func NewStandardExtension(name string, opts StandardOptions) *StandardExtension {
	return &StandardExtension{
		name: name,
		opts: StandardOptions{
			Sources:          clone(opts.Sources),
			IncludeDirs:      clone(opts.IncludeDirs),
			LibraryDirs:      clone(opts.LibraryDirs),
			LibraryBuildDirs: clone(opts.LibraryBuildDirs),
			Libraries:        clone(opts.Libraries),
			Language:         opts.Language,
			ExtraCompileArgs: clone(opts.ExtraCompileArgs),
			ExtraLinkArgs:    clone(opts.ExtraLinkArgs),
		},
	}
}

// Name returns the module name, possibly WildcardName.
func (e *StandardExtension) Name() string { return e.name }

// Kind returns KindStandard.
func (e *StandardExtension) Kind() Kind { return KindStandard }

// Options returns a copy of the compiler and linker settings.
func (e *StandardExtension) Options() StandardOptions {
	return NewStandardExtension(e.name, e.opts).opts
}

// IsWildcard reports whether the extension expands per source file.
func (e *StandardExtension) IsWildcard() bool { return e.name == WildcardName }

// Visit calls v.VisitStandard.
func (e *StandardExtension) Visit(ctx context.Context, v Visitor) error {
	return v.VisitStandard(ctx, e)
}

func (*StandardExtension) sealed() {}

func clone(in []string) []string {
	if in == nil {
		return nil
	}

	return append([]string(nil), in...)
}
