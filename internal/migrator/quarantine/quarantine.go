// Package quarantine decides what happens to a local artifact whose item
// could not be completed. It never touches the remote item.
package quarantine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/materialize"
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
	"github.com/spf13/afero"
)

const (
	KindKeep   = "keep"
	KindRemove = "remove"
	KindS3     = "s3"
)

// Subject identifies the failed artifact.
type Subject struct {
	Branch   string
	Period   period.Period
	Artifact materialize.Artifact
}

type Policy interface {
	Name() string
	Handle(ctx context.Context, s Subject) error
}

// Keep leaves the artifact on disk for manual inspection.
type Keep struct{}

func (Keep) Name() string { return KindKeep }
func (Keep) Handle(ctx context.Context, s Subject) error { return nil }

// Remove deletes the artifact.
type Remove struct {
	FS afero.Fs
}

func (Remove) Name() string { return KindRemove }

func (r Remove) Handle(ctx context.Context, s Subject) error {
	if s.Artifact.Path == "" {
		return nil
	}
	if err := r.FS.Remove(s.Artifact.Path); err != nil {
		return fmt.Errorf("remove %s: %w", s.Artifact.Path, err)
	}
	return nil
}

// ParseKind normalizes a configured policy name. Empty means keep.
func ParseKind(s string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "":
		return KindKeep, nil
	case KindKeep, KindRemove, KindS3:
		return k, nil
	default:
		return "", fmt.Errorf("%w: failure policy %q", common.ErrInvalidConfig, s)
	}
}
