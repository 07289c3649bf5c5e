// Package invocation runs external build tools.
//
// An Invocation is a typed command line with its working directory,
// environment and success predicate. Runner implementations turn a failed
// predicate into an error wrapping ErrChildFailed, so call sites never check
// exit codes themselves.
package invocation
