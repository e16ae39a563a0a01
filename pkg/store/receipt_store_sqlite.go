package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteReceiptStore keeps the receipt index in an embedded SQLite database.
type SQLiteReceiptStore struct {
	db *sql.DB
}

// OpenSQLiteReceiptStore opens (or creates) the database at path.
func OpenSQLiteReceiptStore(path string) (*SQLiteReceiptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open receipt index %q: %w", path, err)
	}
	return NewSQLiteReceiptStore(db)
}

// NewSQLiteReceiptStore takes ownership of db and closes it if the schema
// cannot be created.
func NewSQLiteReceiptStore(db *sql.DB) (*SQLiteReceiptStore, error) {
	s := &SQLiteReceiptStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteReceiptStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS seals (
        receipt_id TEXT PRIMARY KEY,
        content_hash TEXT NOT NULL,
        issued_at TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS seals_content_hash ON seals(content_hash);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("migrate receipt index: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLiteReceiptStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteReceiptStore) Store(ctx context.Context, r Receipt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seals (receipt_id, content_hash, issued_at) VALUES (?, ?, ?)`,
		r.ReceiptID, r.ContentHash, r.IssuedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *SQLiteReceiptStore) Resolve(ctx context.Context, receiptID string) (Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT receipt_id, content_hash, issued_at FROM seals WHERE receipt_id = ?`, receiptID)
	r, err := scanSeal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Receipt{}, ErrReceiptNotFound
		}
		return Receipt{}, err
	}
	return r, nil
}

func (s *SQLiteReceiptStore) ListForHash(ctx context.Context, contentHash string) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT receipt_id, content_hash, issued_at FROM seals WHERE content_hash = ? ORDER BY issued_at ASC`, contentHash)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Receipt
	for rows.Next() {
		r, err := scanSeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSeal(row scanner) (Receipt, error) {
	var (
		r        Receipt
		issuedAt string
	)
	if err := row.Scan(&r.ReceiptID, &r.ContentHash, &issuedAt); err != nil {
		return Receipt{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, issuedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("parse issued_at: %w", err)
	}
	r.IssuedAt = ts
	return r, nil
}
