// Package headers installs header trees without flattening them, so headers
// that include their siblings through relative paths keep working.
package headers
