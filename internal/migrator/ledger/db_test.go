package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, dbx.Postgres, DialectFor("postgres://u:p@localhost/db"))
	assert.Equal(t, dbx.Postgres, DialectFor("PostgreSQL://localhost/db"))
	assert.Equal(t, dbx.SQLite, DialectFor("/var/lib/boletaje/ledger.db"))
	assert.Equal(t, dbx.SQLite, DialectFor("file:ledger.db?_pragma=busy_timeout(5000)"))
}

func TestOpen_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	got, err := l.Get(ctx, "b", "f1")
	require.NoError(t, err)
	assert.Nil(t, got)

	at := time.Unix(1700000000, 0)
	rec := Record{Branch: "b", FileID: "f1", Name: "Hoja", LocalName: "08_Hoja.xlsx", Year: 2024, Month: 8, RunID: "r1", UpdatedAt: at}
	require.NoError(t, l.MarkUploaded(ctx, rec))
	require.NoError(t, l.MarkUploaded(ctx, rec))

	got, err = l.Get(ctx, "b", "f1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusUploaded, got.Status)
	assert.NotEmpty(t, got.ID)
	firstID := got.ID

	require.NoError(t, l.MarkCompleted(ctx, "b", "f1", "r2", at.Add(time.Minute)))
	got, err = l.Get(ctx, "b", "f1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "r2", got.RunID)
	assert.Equal(t, firstID, got.ID)

	var n int
	require.NoError(t, l.DB().QueryRow(`SELECT COUNT(*) FROM completions`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, l.Close())

	// migrations are idempotent on reopen
	l2, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer l2.Close()
	got, err = l2.Get(ctx, "b", "f1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestNop(t *testing.T) {
	var r Repository = Nop{}
	got, err := r.Get(context.Background(), "b", "f")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, r.MarkUploaded(context.Background(), Record{}))
	assert.NoError(t, r.MarkCompleted(context.Background(), "b", "f", "r", time.Now()))
}
