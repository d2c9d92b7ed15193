package ledger

import (
	"context"
	"time"
)

// Repository is the ledger contract used by the pipeline. Get returns
// (nil, nil) when no record exists.
type Repository interface {
	Get(ctx context.Context, branch, fileID string) (*Record, error)
	MarkUploaded(ctx context.Context, r Record) error
	MarkCompleted(ctx context.Context, branch, fileID, runID string, at time.Time) error
}

// Nop is used when no ledger is configured.
type Nop struct{}

func (Nop) Get(context.Context, string, string) (*Record, error) { return nil, nil }

func (Nop) MarkUploaded(context.Context, Record) error { return nil }

func (Nop) MarkCompleted(context.Context, string, string, string, time.Time) error { return nil }
