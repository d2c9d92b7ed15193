// Package drive defines the remote document store the migrator reads from and
// mutates, together with a Google Drive implementation and an in-memory one.
package drive

import (
	"context"
	"io"
	"strings"
)

const (
	// FolderMimeType marks a folder item.
	FolderMimeType = "application/vnd.google-apps.folder"
	// NativePrefix is shared by every Google-native document type.
	NativePrefix = "application/vnd.google-apps."
	// SpreadsheetMimeType is a native Google sheet.
	SpreadsheetMimeType = NativePrefix + "spreadsheet"
)

// Folder is a resolved remote folder.
type Folder struct {
	ID       string
	Name     string
	ParentID string
}

// File is a candidate item found in an intake folder.
type File struct {
	ID       string
	Name     string
	MimeType string
	Parents  []string
	Size     int64
}

// IsNative reports whether the item is a Google-native document that has to
// be exported rather than downloaded.
func (f File) IsNative() bool {
	return strings.HasPrefix(f.MimeType, NativePrefix)
}

// IsFolder reports whether the item is a folder.
func (f File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// Page is one page of a listing.
type Page struct {
	Files         []File
	NextPageToken string
}

// Store is the subset of remote operations the migrator needs.
//
// Download returns length bytes starting at offset; length <= 0 means the
// rest of the content. Move adds one parent and removes another in a single
// call.
type Store interface {
	List(ctx context.Context, q Query, pageToken string) (Page, error)
	Get(ctx context.Context, id string) (File, error)
	Download(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error)
	Export(ctx context.Context, id, mimeType string) (io.ReadCloser, error)
	Rename(ctx context.Context, id, name string) error
	Move(ctx context.Context, id, addParent, removeParent string) error
}
