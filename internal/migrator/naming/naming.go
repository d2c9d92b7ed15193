// Package naming holds the local and remote naming rules: the MM_ period
// prefix, the _procesado completion suffix and filename sanitization.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
	"github.com/spf13/afero"
)

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)

// Sanitize replaces runs of characters that are invalid in filenames with a
// single underscore and trims surrounding whitespace.
func Sanitize(name string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(name, "_"))
}

// HasPrefix reports whether name already starts with the MM_ prefix of p.
func HasPrefix(name string, p period.Period) bool {
	return strings.HasPrefix(name, p.Prefix()+"_")
}

// Prefix returns name with the MM_ prefix of p. It is idempotent.
func Prefix(name string, p period.Period) string {
	if HasPrefix(name, p) {
		return name
	}
	return p.Prefix() + "_" + name
}

// ApplyPeriodPrefix renames the local file at path so its base name carries
// the prefix of p and returns the new path. A file that is already prefixed
// is left alone.
func ApplyPeriodPrefix(fs afero.Fs, path string, p period.Period) (string, error) {
	dir, base := filepath.Split(path)
	if HasPrefix(base, p) {
		return path, nil
	}
	target := filepath.Join(dir, Prefix(base, p))
	if err := fs.Rename(path, target); err != nil {
		return "", fmt.Errorf("prefix %s: %w", path, err)
	}
	return target, nil
}

// ProcessedName inserts the processed marker before the extension:
// "a.xlsx" becomes "a_procesado.xlsx".
func ProcessedName(name string) string {
	if IsProcessed(name) {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + common.ProcessedMarker + ext
}

// IsProcessed reports whether name carries the processed marker.
func IsProcessed(name string) bool {
	return strings.Contains(strings.ToLower(name), common.ProcessedMarker)
}

// ReplaceExt swaps the extension of name for ext (given with its dot).
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
