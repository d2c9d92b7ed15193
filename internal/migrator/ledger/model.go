// Package ledger records which remote items were uploaded and completed, so
// an item whose relocation failed is reconciled instead of uploaded twice.
package ledger

import (
	"time"
)

type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusCompleted Status = "completed"
)

type Record struct {
	ID        string
	Branch    string
	FileID    string
	Name      string
	LocalName string
	Year      int
	Month     int
	Status    Status
	RunID     string
	UpdatedAt time.Time
}
