// Package config defines the project file of a package build and the
// environment snapshot the build steps read instead of the process
// environment.
//
// Config is loaded from YAML once at startup, validated and defaulted, and
// converted into extension descriptors. Environment captures the variables
// that override the generator, add generator arguments, and name the release.
package config
