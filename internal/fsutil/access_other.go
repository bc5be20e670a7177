//go:build !unix

package fsutil

import "os"

// ReadWritable reports whether the current process may read and write path.
// Without access(2) this falls back to opening the path for writing; directories
// are probed by creating and removing a temp file inside them.
func ReadWritable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		f, err := os.CreateTemp(path, ".probe-*")
		if err != nil {
			return false
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return true
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
