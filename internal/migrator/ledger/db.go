package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/boletaje/internal/dbx"
	"github.com/dmitrijs2005/boletaje/internal/migrator/ledger/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Ledger is an opened, migrated ledger database.
type Ledger struct {
	*SQLRepository
	db *sql.DB
}

// DialectFor picks the backend from the DSN: postgres:// and postgresql://
// URLs use pgx, anything else is a sqlite path or URI.
func DialectFor(dsn string) dbx.Dialect {
	l := strings.ToLower(dsn)
	if strings.HasPrefix(l, "postgres://") || strings.HasPrefix(l, "postgresql://") {
		return dbx.Postgres
	}
	return dbx.SQLite
}

func RunMigrations(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	dialect := DialectFor(dsn)
	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// Every connection to an in-memory sqlite database sees its own copy.
	if dialect == dbx.SQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{SQLRepository: NewSQLRepository(db, dialect), db: db}, nil
}

func (l *Ledger) DB() *sql.DB { return l.db }

func (l *Ledger) Close() error {
	return l.db.Close()
}
