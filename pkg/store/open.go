package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// OpenReceiptStore builds a receipt index from a DSN:
//
//	""  or "memory"           in-process map
//	"sqlite://<path>"         embedded SQLite file
//	"postgres://..."          shared Postgres (driver registered by the caller)
//
// The returned close func releases any underlying database.
func OpenReceiptStore(ctx context.Context, dsn string) (ReceiptStore, func() error, error) {
	noop := func() error { return nil }

	switch {
	case dsn == "" || dsn == "memory":
		return NewMemoryReceiptStore(), noop, nil

	case strings.HasPrefix(dsn, "sqlite://"):
		s, err := OpenSQLiteReceiptStore(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("open receipt index: %w", err)
		}
		s := NewPostgresReceiptStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return s, db.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported receipt index dsn %q", dsn)
	}
}
