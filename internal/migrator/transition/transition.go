// Package transition applies the post-upload state change of an item:
// optional processed rename, relocation from intake to archive, local
// cleanup. Relocation alone decides whether the item is completed.
package transition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/logging"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
	"github.com/dmitrijs2005/boletaje/internal/migrator/materialize"
	"github.com/dmitrijs2005/boletaje/internal/migrator/naming"
	"github.com/dmitrijs2005/boletaje/internal/migrator/quarantine"
	"github.com/dmitrijs2005/boletaje/internal/migrator/resolver"
	"github.com/spf13/afero"
)

type Style string

const (
	StyleRelocate       Style = "relocate"
	StyleRenameRelocate Style = "rename+relocate"
)

func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleRelocate, nil
	case StyleRelocate, StyleRenameRelocate:
		return st, nil
	default:
		return "", fmt.Errorf("%w: completion style %q", common.ErrInvalidConfig, s)
	}
}

// Result describes what Complete managed to do. Err is set only when the
// relocation failed; rename and cleanup problems are in Warnings.
type Result struct {
	Completed    bool
	Renamed      bool
	Relocated    bool
	LocalDeleted bool
	Err          error
	Warnings     []error
}

type Transitioner struct {
	store   drive.Store
	fs      afero.Fs
	style   Style
	policy  quarantine.Policy
	timeout time.Duration
	log     logging.Logger
}

func New(store drive.Store, fs afero.Fs, style Style, policy quarantine.Policy, timeout time.Duration, log logging.Logger) *Transitioner {
	if policy == nil {
		policy = quarantine.Keep{}
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Transitioner{store: store, fs: fs, style: style, policy: policy, timeout: timeout, log: log}
}

// Complete runs after a successful upload. An empty artifact path skips the
// local cleanup, which is how reconciliation of an earlier upload runs.
func (t *Transitioner) Complete(ctx context.Context, f drive.File, folders resolver.PeriodFolders, a materialize.Artifact) Result {
	var res Result
	log := t.log.With("file_id", f.ID, "name", f.Name)

	if t.style == StyleRenameRelocate && !naming.IsProcessed(f.Name) {
		name := naming.ProcessedName(f.Name)
		if err := t.call(ctx, func(ctx context.Context) error { return t.store.Rename(ctx, f.ID, name) }); err != nil {
			log.Warn(ctx, "remote rename failed", "error", err)
			res.Warnings = append(res.Warnings, fmt.Errorf("rename: %w", err))
		} else {
			res.Renamed = true
			log.Info(ctx, "renamed remote item", "new_name", name)
		}
	}

	err := t.call(ctx, func(ctx context.Context) error {
		return t.store.Move(ctx, f.ID, folders.Archive.ID, folders.Intake.ID)
	})
	if err != nil {
		res.Err = fmt.Errorf("%w: relocate %s to %s: %v", common.ErrTransition, f.ID, folders.Archive.Name, err)
		log.Error(ctx, "relocation failed", "error", err)
	} else {
		res.Relocated = true
		res.Completed = true
		log.Info(ctx, "moved to archive", "archive", folders.Archive.Name)
	}

	if a.Path != "" {
		if err := t.fs.Remove(a.Path); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			log.Warn(ctx, "local cleanup failed", "path", a.Path, "error", err)
			res.Warnings = append(res.Warnings, fmt.Errorf("remove local: %w", err))
		} else {
			res.LocalDeleted = true
		}
	}
	return res
}

// Fail hands a failed artifact to the failure policy. The remote item is
// left where it is so the next run picks it up again.
func (t *Transitioner) Fail(ctx context.Context, s quarantine.Subject) error {
	if s.Artifact.Path == "" {
		return nil
	}
	if err := t.policy.Handle(ctx, s); err != nil {
		return fmt.Errorf("failure policy %s: %w", t.policy.Name(), err)
	}
	return nil
}

func (t *Transitioner) call(ctx context.Context, fn func(context.Context) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return fn(ctx)
}
