// Package filex prepares the local working directory where transient
// artifacts are staged.
package filex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// getwd is swapped in tests.
var getwd = os.Getwd

// EnsureDir creates dir on fs if needed and returns its absolute path.
// Relative paths are resolved against the current working directory.
func EnsureDir(fs afero.Fs, dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := fs.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	info, err := fs.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}

	return dir, nil
}

// Leftovers lists regular files in dir, e.g. artifacts kept after failed
// uploads by a previous run.
func Leftovers(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.Mode().IsRegular() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
