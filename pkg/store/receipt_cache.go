package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedReceiptStore fronts a ReceiptStore with an in-process ristretto cache
// for Resolve. Receipts are immutable, so entries never need invalidation.
type CachedReceiptStore struct {
	inner ReceiptStore
	cache *ristretto.Cache[string, Receipt]
}

// NewCachedReceiptStore caches up to maxItems resolved receipts.
func NewCachedReceiptStore(inner ReceiptStore, maxItems int64) (*CachedReceiptStore, error) {
	if maxItems <= 0 {
		maxItems = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, Receipt]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("receipt cache: %w", err)
	}
	return &CachedReceiptStore{inner: inner, cache: c}, nil
}

func (s *CachedReceiptStore) Store(ctx context.Context, r Receipt) error {
	if err := s.inner.Store(ctx, r); err != nil {
		return err
	}
	s.cache.Set(r.ReceiptID, r, 1)
	return nil
}

func (s *CachedReceiptStore) Resolve(ctx context.Context, receiptID string) (Receipt, error) {
	if r, ok := s.cache.Get(receiptID); ok {
		return r, nil
	}
	r, err := s.inner.Resolve(ctx, receiptID)
	if err != nil {
		return Receipt{}, err
	}
	s.cache.Set(receiptID, r, 1)
	return r, nil
}

func (s *CachedReceiptStore) ListForHash(ctx context.Context, contentHash string) ([]Receipt, error) {
	return s.inner.ListForHash(ctx, contentHash)
}

// Close shuts down the cache.
func (s *CachedReceiptStore) Close() {
	s.cache.Close()
}
