// Package limiter is the trend-aware admission controller that runs before a
// decision is sealed.
//
// Isolated near-floor scores are tolerated with a cool-down (delay); repeated
// near-floor scores for the same agent trigger a hard block.
package limiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/store/ledger"
)

// Decision is an admission outcome.
type Decision string

const (
	Allow Decision = "allow"
	Delay Decision = "delay"
	Block Decision = "block"
)

const (
	// DefaultWindow is how many recent records are inspected.
	DefaultWindow = 5

	// NearBand is the width of the near-threshold band above psi_min.
	NearBand = 0.02
)

// History is the slice of the ledger the limiter reads.
type History interface {
	Recent(ctx context.Context, agent string, n int) ([]ledger.Record, error)
}

// Limiter admits or refuses candidates against an agent's recent history.
type Limiter struct {
	history History
	cfg     floors.Config
	window  int
	store   Store
	policy  Policy
	logger  *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides DefaultWindow.
func WithWindow(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.window = n
		}
	}
}

// WithBackpressure adds a per-agent token bucket. An empty bucket downgrades
// allow to delay.
func WithBackpressure(store Store, policy Policy) Option {
	return func(l *Limiter) {
		l.store = store
		l.policy = policy
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func New(history History, cfg floors.Config, opts ...Option) *Limiter {
	l := &Limiter{
		history: history,
		cfg:     cfg,
		window:  DefaultWindow,
		logger:  slog.Default().With("component", "limiter"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit decides whether a candidate with metrics m and composite score may be
// sealed for agent.
func (l *Limiter) Admit(ctx context.Context, agent string, m psi.Metrics, score float64) (Decision, error) {
	minimum := l.cfg.PsiMin()

	if !(m.DeltaS >= l.cfg.Get(floors.DeltaS, 0)) || !(score >= minimum) {
		return Block, nil
	}

	recent, err := l.history.Recent(ctx, agent, l.window)
	if err != nil {
		return "", fmt.Errorf("limiter history: %w", err)
	}
	nearRecent := 0
	for _, r := range recent {
		if v, ok := r.Metrics["psi"]; ok && l.nearThreshold(v) {
			nearRecent++
		}
	}

	decision := Allow
	switch {
	case l.nearThreshold(score) && nearRecent >= 1:
		decision = Block
	case l.nearThreshold(score):
		decision = Delay
	case nearRecent >= 2:
		decision = Delay
	}

	if decision == Allow && l.store != nil {
		ok, err := l.store.Allow(ctx, agent, l.policy, 1)
		if err != nil {
			return "", fmt.Errorf("limiter backpressure: %w", err)
		}
		if !ok {
			decision = Delay
		}
	}

	l.logger.DebugContext(ctx, "admission",
		"agent", agent, "psi", score, "near_recent", nearRecent, "decision", decision)
	return decision, nil
}

// nearThreshold reports whether v lies in [psi_min, psi_min + NearBand).
func (l *Limiter) nearThreshold(v float64) bool {
	minimum := l.cfg.PsiMin()
	return v >= minimum && v < minimum+NearBand
}
