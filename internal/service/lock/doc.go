// Package lock keeps two builds of one project from sharing the build-temp
// tree at the same time. The holder writes a YAML marker with its PID and a
// run id; a marker whose PID no longer exists is treated as stale.
package lock
