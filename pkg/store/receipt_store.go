package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrReceiptNotFound is returned when a receipt id is unknown.
var ErrReceiptNotFound = errors.New("receipt not found")

// Receipt binds an issued seal to the ledger content hash it was issued for.
type Receipt struct {
	ReceiptID   string    `json:"receipt_id"`
	ContentHash string    `json:"content_hash"`
	IssuedAt    time.Time `json:"issued_at"`
}

// ReceiptStore persists receipt → content hash bindings. The ledger file stays
// the source of truth for decisions; this is an index over issued seals.
type ReceiptStore interface {
	Store(ctx context.Context, r Receipt) error
	Resolve(ctx context.Context, receiptID string) (Receipt, error)
	ListForHash(ctx context.Context, contentHash string) ([]Receipt, error)
}

// MemoryReceiptStore keeps receipts in process memory.
type MemoryReceiptStore struct {
	mu       sync.RWMutex
	receipts map[string]Receipt
}

func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{receipts: make(map[string]Receipt)}
}

func (s *MemoryReceiptStore) Store(_ context.Context, r Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.receipts[r.ReceiptID]; exists {
		return nil
	}
	s.receipts[r.ReceiptID] = r
	return nil
}

func (s *MemoryReceiptStore) Resolve(_ context.Context, receiptID string) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[receiptID]
	if !ok {
		return Receipt{}, ErrReceiptNotFound
	}
	return r, nil
}

func (s *MemoryReceiptStore) ListForHash(_ context.Context, contentHash string) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Receipt
	for _, r := range s.receipts {
		if r.ContentHash == contentHash {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// PostgresReceiptStore is a durable SQL-based implementation shared between
// processes.
type PostgresReceiptStore struct {
	db *sql.DB
}

func NewPostgresReceiptStore(db *sql.DB) *PostgresReceiptStore {
	return &PostgresReceiptStore{db: db}
}

// Migrate creates the seals table if it does not exist.
func (s *PostgresReceiptStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS seals (
			receipt_id   TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			issued_at    TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate seals: %w", err)
	}
	return nil
}

func (s *PostgresReceiptStore) Store(ctx context.Context, r Receipt) error {
	query := `
		INSERT INTO seals (receipt_id, content_hash, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (receipt_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, r.ReceiptID, r.ContentHash, r.IssuedAt); err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresReceiptStore) Resolve(ctx context.Context, receiptID string) (Receipt, error) {
	query := `
		SELECT receipt_id, content_hash, issued_at
		FROM seals
		WHERE receipt_id = $1
	`
	var r Receipt
	err := s.db.QueryRowContext(ctx, query, receiptID).Scan(&r.ReceiptID, &r.ContentHash, &r.IssuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Receipt{}, ErrReceiptNotFound
		}
		return Receipt{}, err
	}
	return r, nil
}

func (s *PostgresReceiptStore) ListForHash(ctx context.Context, contentHash string) ([]Receipt, error) {
	query := `
		SELECT receipt_id, content_hash, issued_at
		FROM seals
		WHERE content_hash = $1
		ORDER BY issued_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, contentHash)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Receipt
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.ReceiptID, &r.ContentHash, &r.IssuedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
