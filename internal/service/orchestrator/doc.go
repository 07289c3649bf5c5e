// Package orchestrator drives the extension build step.
//
// Native targets are configured and built by the external generator in one
// shared build-temp tree, one target after another. Standard extensions are
// handed to the standard compiled-extension builder unchanged. Any failure
// stops the run; nothing after the failing descriptor is attempted.
package orchestrator
