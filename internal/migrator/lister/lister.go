// Package lister enumerates the unprocessed candidate items of an intake
// folder.
package lister

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
)

// Filter selects which item types are candidates.
type Filter string

const (
	// FilterSpreadsheets accepts native sheets and xlsx/xls/csv names.
	FilterSpreadsheets Filter = "spreadsheets"
	// FilterXLSX accepts names containing .xlsx only.
	FilterXLSX Filter = "xlsx"
	// FilterAll accepts every non-folder item.
	FilterAll Filter = "all"
)

// ParseFilter maps a configuration value to a Filter. Empty means
// FilterSpreadsheets.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterSpreadsheets, nil
	case FilterSpreadsheets, FilterXLSX, FilterAll:
		return f, nil
	default:
		return "", fmt.Errorf("%w: list filter %q", common.ErrInvalidConfig, s)
	}
}

// Query builds the listing query of folderID for this filter.
func (f Filter) Query(folderID string) drive.Query {
	q := drive.Query{
		Parent:          folderID,
		ExcludeMimeType: drive.FolderMimeType,
		NameExcludes:    common.ProcessedMarker,
	}
	switch f {
	case FilterXLSX:
		q.NameContainsAny = []string{".xlsx"}
	case FilterAll:
	default:
		q.MimeTypeIn = []string{drive.SpreadsheetMimeType}
		q.NameContainsAny = []string{".xlsx", ".xls", ".csv"}
	}
	return q
}

type Lister struct {
	store   drive.Store
	filter  Filter
	timeout time.Duration
}

func New(store drive.Store, filter Filter, timeout time.Duration) *Lister {
	if filter == "" {
		filter = FilterSpreadsheets
	}
	return &Lister{store: store, filter: filter, timeout: timeout}
}

// Pending returns every candidate in folderID, following pagination, sorted
// case-insensitively by name with ties broken by ID. The result is
// re-filtered locally so a loose remote match never yields a processed item.
func (l *Lister) Pending(ctx context.Context, folderID string) ([]drive.File, error) {
	q := l.filter.Query(folderID)
	out := []drive.File{}
	seen := map[string]bool{}

	token := ""
	for {
		page, err := l.page(ctx, q, token)
		if err != nil {
			return nil, fmt.Errorf("list pending in %s: %w", folderID, err)
		}
		for _, f := range page.Files {
			if seen[f.ID] || !q.Matches(f) {
				continue
			}
			seen[f.ID] = true
			out = append(out, f)
		}
		if page.NextPageToken == "" || page.NextPageToken == token {
			break
		}
		token = page.NextPageToken
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (l *Lister) page(ctx context.Context, q drive.Query, token string) (drive.Page, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.store.List(ctx, q, token)
}
