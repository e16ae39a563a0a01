// Package ledger implements the Cooling Ledger: an append-only, idempotent,
// replay-resistant log of governance decisions persisted as newline-delimited
// canonical JSON.
//
// The log file is the sole source of truth for idempotency and replay checks.
// It is never rewritten or compacted.
package ledger

import (
	"context"
	"os"
)

// DefaultPath is used when TEARFRAME_LEDGER_PATH is unset.
const DefaultPath = "cooling_ledger/ledger.jsonl"

// PathEnv names the environment override for the ledger location.
const PathEnv = "TEARFRAME_LEDGER_PATH"

// Ledger is the durable interface for decision recording.
type Ledger interface {
	// Append records a decision and returns its content hash. A repeated
	// idempotency key returns the stored hash without writing.
	Append(ctx context.Context, e Entry) (string, error)

	// Seal issues a fresh receipt for a recorded content hash.
	Seal(ctx context.Context, contentHash string) (string, error)

	// Resolve maps a receipt back to the content hash it was issued for.
	Resolve(ctx context.Context, receiptID string) (string, error)

	// Lookup retrieves the first record with the given content hash.
	Lookup(ctx context.Context, contentHash string) (Record, error)

	// Recent returns up to n most recent records for agent, oldest first.
	Recent(ctx context.Context, agent string, n int) ([]Record, error)

	// Records returns every well-formed record in file order.
	Records(ctx context.Context) ([]Record, error)
}

// PathFromEnv resolves the ledger location.
func PathFromEnv() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}
