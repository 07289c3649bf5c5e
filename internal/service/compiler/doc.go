// Package compiler builds standard extensions: every source is compiled to an
// object file in the shared build-temp tree and the objects are linked into a
// shared module under the library build directory.
//
// Library build directories of an extension are logical names resolved through
// buildpath, so "lib" points at the directory native targets write to.
package compiler
