// Package driver is the packaging entry point. It resolves the build layout,
// wires the extension builder, header installer, dist step and lock from the
// project file, and runs them in order.
package driver
