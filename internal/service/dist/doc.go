// Package dist packs built modules and installed headers into an
// xz-compressed tarball with a RECORD file listing the SHA-256 and size of
// every member. The archive is replaced atomically, so a reader never sees a
// half-written file.
package dist
