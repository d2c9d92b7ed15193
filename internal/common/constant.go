// Package common contains shared constants and sentinel errors used across
// the migrator packages.
package common

const (
	// BranchQueryParam carries the branch header on every upload request.
	BranchQueryParam = "sucursal"

	// UploadFieldName is the multipart field holding the file part.
	UploadFieldName = "file"

	// ProcessedMarker is appended to remote names by the rename completion style.
	ProcessedMarker = "_procesado"

	// Default names of the folders under every month folder.
	DefaultIntakeFolder  = "TH"
	DefaultArchiveFolder = "RESPALDO"
)
