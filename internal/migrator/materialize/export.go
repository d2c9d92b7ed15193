package materialize

import "github.com/dmitrijs2005/boletaje/internal/migrator/drive"

// Export is the concrete format a Google-native type is converted to.
type Export struct {
	MimeType  string
	Extension string
}

var exports = map[string]Export{
	drive.NativePrefix + "spreadsheet":  {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	drive.NativePrefix + "document":     {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
	drive.NativePrefix + "presentation": {"application/vnd.openxmlformats-officedocument.presentationml.presentation", ".pptx"},
	drive.NativePrefix + "drawing":      {"image/png", ".png"},
	drive.NativePrefix + "jam":          {"application/pdf", ".pdf"},
}

// ExportFor returns the export format of a native type.
func ExportFor(mimeType string) (Export, bool) {
	e, ok := exports[mimeType]
	return e, ok
}
