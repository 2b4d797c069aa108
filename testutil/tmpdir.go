package testutil

import (
	"os"
	"path/filepath"
)

// WithTmpdir runs fn with a fresh scratch directory which is removed again on
// the way out, pass or fail.
func WithTmpdir(fn func(tmpDir string)) {
	dir, err := os.MkdirTemp("", "hdx-test-")
	if err != nil {
		panic(err)
	}
	dir, err = filepath.EvalSymlinks(dir) // macOS tempdirs live behind a symlink
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	fn(dir)
}
