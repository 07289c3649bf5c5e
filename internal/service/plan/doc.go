// Package plan prints the child processes a build would run, one table row per
// step, without running them or writing to the filesystem.
package plan
