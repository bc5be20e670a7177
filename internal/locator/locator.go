// Package locator finds or creates the per-user data directory.
package locator

import (
	"os"
	"path/filepath"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/fsutil"
)

// DirName is the fixed name of the data directory under each candidate base.
const DirName = ".leetsolver"

// DefaultCandidates returns the base directories in preference order:
// the user's home directory, then the directory holding the executable.
func DefaultCandidates() []string {
	var bases []string
	if home, err := os.UserHomeDir(); err == nil {
		bases = append(bases, home)
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		bases = append(bases, filepath.Dir(exe))
	}
	return bases
}

// Find returns the first existing, read+write accessible <base>/<name>
// directory. Unlike Locate it never creates anything.
func Find(bases []string, name string) (string, error) {
	if path, ok := findExisting(bases, name); ok {
		return path, nil
	}
	return "", apperr.New(apperr.ErrDirectoryNotFound,
		"no data directory found; run init to create one").
		With("name", name).
		With("candidates", bases)
}

// Locate returns the first existing, read+write accessible <base>/<name>
// directory. If none qualifies it tries to create one at each base in order
// and returns the first success.
func Locate(bases []string, name string) (string, error) {
	if path, ok := findExisting(bases, name); ok {
		return path, nil
	}

	var lastErr error
	for _, base := range bases {
		path := filepath.Join(base, name)
		if err := os.MkdirAll(path, 0o755); err != nil {
			lastErr = err
			continue
		}
		if !fsutil.ReadWritable(path) {
			continue
		}
		return path, nil
	}

	return "", apperr.Wrap(apperr.ErrDirectoryNotFound, lastErr,
		"no usable data directory; make sure the home directory is writable").
		With("name", name).
		With("candidates", bases)
}

func findExisting(bases []string, name string) (string, bool) {
	for _, base := range bases {
		path := filepath.Join(base, name)
		info, err := os.Stat(path)
		if err == nil && info.IsDir() && fsutil.ReadWritable(path) {
			return path, true
		}
	}
	return "", false
}
