package ledger

import (
	"errors"
)

// ErrNotFound is returned when a ledger entry is not found.
var ErrNotFound = errors.New("not found")

// ErrRecordTooLarge is returned when an encoded record exceeds the line limit.
var ErrRecordTooLarge = errors.New("ledger: record too large")

// PlanIDKey is the metadata key carrying the plan identity used for replay
// detection.
const PlanIDKey = "plan_id"

// Entry is a decision submitted for recording.
type Entry struct {
	Agent          string
	Metrics        map[string]float64
	Note           string
	IdempotencyKey string
	Metadata       map[string]any
}

// Record is one persisted ledger line. Timestamp and Hash are assigned by the
// ledger; Hash covers every other field except Timestamp.
type Record struct {
	Agent          string             `json:"agent"`
	Metrics        map[string]float64 `json:"metrics"`
	Note           string             `json:"note"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	Timestamp      string             `json:"ts"`
	Hash           string             `json:"hash"`
}

// PlanID returns the plan identity recorded in metadata, if any.
func (r Record) PlanID() string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[PlanIDKey].(string)
	return s
}

// payload is the hashed portion of a record.
func (r Record) payload(withKey bool) map[string]any {
	p := map[string]any{
		"agent":   r.Agent,
		"metrics": r.Metrics,
		"note":    r.Note,
	}
	if withKey && r.IdempotencyKey != "" {
		p["idempotency_key"] = r.IdempotencyKey
	}
	if len(r.Metadata) > 0 {
		p["metadata"] = r.Metadata
	}
	return p
}
