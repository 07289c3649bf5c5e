// Package version exposes build metadata of extbuild.
//
// Version, Commit and BuildTime are injected with -ldflags -X by the mage build target.
package version
