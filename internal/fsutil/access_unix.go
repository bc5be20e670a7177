//go:build unix

package fsutil

import "golang.org/x/sys/unix"

// ReadWritable reports whether the current process may read and write path.
func ReadWritable(path string) bool {
	return unix.Access(path, unix.R_OK|unix.W_OK) == nil
}
