package materialize

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

const octetStream = "application/octet-stream"

// known overrides the platform MIME table for the formats the ingestion
// endpoint cares about.
var known = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
}

// Classify returns the content type of the local file at path: the static
// table first, then the platform table by extension, then a content sniff.
func Classify(fs afero.Fs, path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := known[ext]; ok {
		return ct
	}
	if ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}

	f, err := fs.Open(path)
	if err != nil {
		return octetStream
	}
	defer f.Close()

	m, err := mimetype.DetectReader(f)
	if err != nil || m == nil {
		return octetStream
	}
	return m.String()
}
