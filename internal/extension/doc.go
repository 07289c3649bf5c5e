// Package extension describes the build targets of a package.
//
// A Descriptor is either a NativeTarget, built by the external meta-build
// generator, or a StandardExtension, compiled and linked directly. Callers
// dispatch through Visit instead of inspecting the concrete type.
package extension
