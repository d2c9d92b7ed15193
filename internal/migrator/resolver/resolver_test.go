package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/drive"
	"github.com/dmitrijs2005/boletaje/internal/migrator/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tree struct {
	store  *drive.MemStore
	branch string
	month  string
	th     string
	arch   string
}

func newTree(t *testing.T) tree {
	t.Helper()
	m := drive.NewMemStore()
	root := m.AddFolder("Archivos de carga", "")
	branch := m.AddFolder("61. 006-PLAZA REFORMA", root)
	year := m.AddFolder("2024", branch)
	month := m.AddFolder("AGOSTO", year)
	th := m.AddFolder("TH", month)
	arch := m.AddFolder("RESPALDO", month)
	return tree{store: m, branch: branch, month: month, th: th, arch: arch}
}

var names = Names{Root: "Archivos de carga", Branch: "61. 006-PLAZA REFORMA"}

func TestResolver_BranchAndPeriod(t *testing.T) {
	tr := newTree(t)
	r := New(tr.store, names, time.Second)
	ctx := context.Background()

	b, err := r.Branch(ctx)
	require.NoError(t, err)
	assert.Equal(t, tr.branch, b.ID)

	pf, err := r.Period(ctx, b, period.Period{Year: 2024, Month: time.August})
	require.NoError(t, err)
	assert.Equal(t, tr.month, pf.Month.ID)
	assert.Equal(t, tr.th, pf.Intake.ID)
	assert.Equal(t, tr.arch, pf.Archive.ID)
	assert.Equal(t, tr.month, pf.Intake.ParentID)
}

func TestResolver_MissingLinks(t *testing.T) {
	tr := newTree(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    period.Period
		link string
	}{
		{"missing year", period.Period{Year: 2023, Month: time.August}, "2023"},
		{"missing month", period.Period{Year: 2024, Month: time.July}, "JULIO"},
	}
	r := New(tr.store, names, 0)
	b, err := r.Branch(ctx)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Period(ctx, b, tt.p)
			require.ErrorIs(t, err, common.ErrChainResolution)
			var ce *ChainError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.link, ce.Link)
			assert.Nil(t, ce.Unwrap())
		})
	}

	t.Run("missing intake", func(t *testing.T) {
		tr.store.Trash(tr.th)
		_, err := r.Period(ctx, b, period.Period{Year: 2024, Month: time.August})
		var ce *ChainError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "TH", ce.Link)
		assert.Equal(t, tr.month, ce.Parent)
	})
}

func TestResolver_FirstMatchWins(t *testing.T) {
	m := drive.NewMemStore()
	first := m.AddFolder("Dup", "")
	m.AddFolder("Dup", "")
	r := New(m, names, 0)

	f, err := r.Folder(context.Background(), "Dup", "")
	require.NoError(t, err)
	assert.Equal(t, first, f.ID)
}

func TestResolver_StoreErrorWrapped(t *testing.T) {
	m := drive.NewMemStore()
	boom := errors.New("quota")
	m.ListErr = boom
	r := New(m, names, 0)

	_, err := r.Branch(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, common.ErrChainResolution)
	assert.Contains(t, err.Error(), "Archivos de carga")
}

func TestResolver_ReadOnly(t *testing.T) {
	tr := newTree(t)
	r := New(tr.store, names, 0)
	_, _ = r.Chain(context.Background(), tr.branch, "1999", "ENERO")
	assert.Empty(t, tr.store.Moves)
	assert.Empty(t, tr.store.Renames)
	assert.Len(t, tr.store.Children(tr.branch), 1)
}

// emptyFirstPage answers the first listing with no files and a token.
type emptyFirstPage struct {
	*drive.MemStore
	calls []string
}

func (s *emptyFirstPage) List(ctx context.Context, q drive.Query, token string) (drive.Page, error) {
	s.calls = append(s.calls, token)
	if token == "" {
		return drive.Page{NextPageToken: "0"}, nil
	}
	return s.MemStore.List(ctx, q, "")
}

func TestResolver_FollowsEmptyPages(t *testing.T) {
	tr := newTree(t)
	store := &emptyFirstPage{MemStore: tr.store}
	r := New(store, names, time.Second)

	f, err := r.Folder(context.Background(), "TH", tr.month)
	require.NoError(t, err)
	assert.Equal(t, tr.th, f.ID)
	assert.Equal(t, []string{"", "0"}, store.calls)
}
