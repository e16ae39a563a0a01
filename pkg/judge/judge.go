// Package judge is the refusal-first gate in front of the ledger: a decision
// is recorded and sealed only when its metrics clear every floor and the
// composite minimum.
package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/store/ledger"
)

// AuditInterval is the delay before a sealed decision is due for review.
const AuditInterval = 72 * time.Hour

// Decision is the verdict on one metrics snapshot.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Score   float64 `json:"psi"`
	Reason  string  `json:"reason"`

	// Err is the governance pause behind a refusal.
	Err error `json:"-"`
}

// Judge evaluates m without side effects.
func Judge(m psi.Metrics, cfg floors.Config) Decision {
	score, err := psi.Evaluate(m, cfg)
	if err != nil {
		return Decision{Score: score, Reason: err.Error(), Err: err}
	}
	return Decision{Allowed: true, Score: score, Reason: fmt.Sprintf("psi=%.3f satisfies governance", score)}
}

// Request is a decision to seal.
type Request struct {
	Agent          string
	Metrics        psi.Metrics
	Note           string
	PlanID         string
	IdempotencyKey string
	Metadata       map[string]any
}

// Sealed identifies a recorded and sealed decision.
type Sealed struct {
	ContentHash string  `json:"content_hash"`
	ReceiptID   string  `json:"receipt_id"`
	Score       float64 `json:"psi"`
}

// SealIfLawful judges req and, when allowed, appends it to l and issues a
// receipt. A refusal is returned as the scorer's governance pause and nothing
// is written. PlanID and Agent are merged into metadata unless the caller
// already set those keys.
func SealIfLawful(ctx context.Context, l ledger.Ledger, cfg floors.Config, req Request) (Sealed, error) {
	verdict := Judge(req.Metrics, cfg)
	if !verdict.Allowed {
		return Sealed{}, verdict.Err
	}
	score := verdict.Score

	metadata := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if _, ok := metadata[ledger.PlanIDKey]; !ok && req.PlanID != "" {
		metadata[ledger.PlanIDKey] = req.PlanID
	}
	if _, ok := metadata["agent"]; !ok {
		metadata["agent"] = req.Agent
	}

	hash, err := l.Append(ctx, ledger.Entry{
		Agent:          req.Agent,
		Metrics:        req.Metrics.WithScore(score),
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       metadata,
	})
	if err != nil {
		return Sealed{}, err
	}

	receipt, err := l.Seal(ctx, hash)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{ContentHash: hash, ReceiptID: receipt, Score: score}, nil
}

// NextAudit returns when a decision sealed at t is due for review.
func NextAudit(t time.Time) time.Time {
	return t.UTC().Add(AuditInterval)
}
