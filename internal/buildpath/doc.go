// Package buildpath names the platform- and interpreter-qualified directories
// that build outputs land in.
//
// The same Name result is used to place native library outputs and to search
// for them when linking binding extensions, so both sides must go through
// this package.
package buildpath
