// Package resolver walks the fixed folder hierarchy
// root -> branch -> year -> month -> {intake, archive}. It never creates
// folders.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
)

// ChainError reports which link of the hierarchy could not be resolved.
type ChainError struct {
	Link   string
	Parent string
	Err    error
}

func (e *ChainError) Error() string {
	where := "top level"
	if e.Parent != "" {
		where = "parent " + e.Parent
	}
	if e.Err != nil {
		return fmt.Sprintf("resolve folder %q under %s: %v", e.Link, where, e.Err)
	}
	return fmt.Sprintf("folder %q not found under %s", e.Link, where)
}

func (e *ChainError) Unwrap() error { return e.Err }

func (e *ChainError) Is(target error) bool { return target == common.ErrChainResolution }

// PeriodFolders are the folders of a single month.
type PeriodFolders struct {
	Month   drive.Folder
	Intake  drive.Folder
	Archive drive.Folder
}

// Names holds the folder names that vary per deployment.
type Names struct {
	Root    string
	Branch  string
	Intake  string
	Archive string
}

type Resolver struct {
	store   drive.Store
	names   Names
	timeout time.Duration
}

// New returns a resolver. Empty intake/archive names fall back to TH and
// RESPALDO; a non-positive timeout disables the per-call bound.
func New(store drive.Store, names Names, timeout time.Duration) *Resolver {
	if names.Intake == "" {
		names.Intake = common.DefaultIntakeFolder
	}
	if names.Archive == "" {
		names.Archive = common.DefaultArchiveFolder
	}
	return &Resolver{store: store, names: names, timeout: timeout}
}

// Folder finds a folder by exact name, scoped to parent when it is not
// empty. When several match the first one returned wins.
func (r *Resolver) Folder(ctx context.Context, name, parent string) (drive.Folder, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	q := drive.Query{Name: name, Parent: parent, MimeType: drive.FolderMimeType}
	token := ""
	for {
		page, err := r.store.List(ctx, q, token)
		if err != nil {
			return drive.Folder{}, &ChainError{Link: name, Parent: parent, Err: err}
		}
		if len(page.Files) > 0 {
			f := page.Files[0]
			return drive.Folder{ID: f.ID, Name: f.Name, ParentID: parent}, nil
		}
		// Drive may hand out empty pages that still carry a token.
		if page.NextPageToken == "" {
			return drive.Folder{}, &ChainError{Link: name, Parent: parent}
		}
		token = page.NextPageToken
	}
}

// Chain resolves names one below the other starting at parent and returns
// the last folder. It stops at the first missing link.
func (r *Resolver) Chain(ctx context.Context, parent string, names ...string) (drive.Folder, error) {
	cur := drive.Folder{ID: parent}
	for _, n := range names {
		f, err := r.Folder(ctx, n, cur.ID)
		if err != nil {
			return drive.Folder{}, err
		}
		cur = f
	}
	return cur, nil
}

// Branch resolves the root and branch folders.
func (r *Resolver) Branch(ctx context.Context) (drive.Folder, error) {
	return r.Chain(ctx, "", r.names.Root, r.names.Branch)
}

// Period resolves the year, month, intake and archive folders of p below the
// branch folder.
func (r *Resolver) Period(ctx context.Context, branch drive.Folder, p period.Period) (PeriodFolders, error) {
	month, err := r.Chain(ctx, branch.ID, p.YearFolder(), p.Name())
	if err != nil {
		return PeriodFolders{}, err
	}
	intake, err := r.Folder(ctx, r.names.Intake, month.ID)
	if err != nil {
		return PeriodFolders{}, err
	}
	archive, err := r.Folder(ctx, r.names.Archive, month.ID)
	if err != nil {
		return PeriodFolders{}, err
	}
	return PeriodFolders{Month: month, Intake: intake, Archive: archive}, nil
}
