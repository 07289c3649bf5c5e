// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag,
//   - convenience functions (InfoKV, ErrorKV, etc.).
//
// Build steps accept a context and extract the logger from it, so a run id
// or target name attached once shows up on every line below it.
package logger
