// Package pause defines the governance pause error family.
//
// Every refusal the pipeline can produce is a *Pause carrying a Kind. Callers
// branch on the kind with errors.Is against the Err* sentinels or with KindOf.
package pause

import (
	"errors"
	"fmt"
)

// Kind distinguishes the sub-kinds of a governance pause.
type Kind string

const (
	KindFloorBreach          Kind = "FLOOR_BREACH"
	KindTruthFloorBreach     Kind = "TRUTH_FLOOR_BREACH"
	KindStabilityFloorBreach Kind = "STABILITY_FLOOR_BREACH"
	KindBelowThreshold       Kind = "BELOW_THRESHOLD"
	KindSeededDraftRejected  Kind = "SEEDED_DRAFT_REJECTED"
	KindCoolingExhausted     Kind = "COOLING_EXHAUSTED"
	KindLimiterBlocked       Kind = "LIMITER_BLOCKED"
	KindReplayDetected       Kind = "REPLAY_DETECTED"
)

// Sentinels for errors.Is matching.
var (
	ErrFloorBreach          = &Pause{Kind: KindFloorBreach}
	ErrTruthFloorBreach     = &Pause{Kind: KindTruthFloorBreach}
	ErrStabilityFloorBreach = &Pause{Kind: KindStabilityFloorBreach}
	ErrBelowThreshold       = &Pause{Kind: KindBelowThreshold}
	ErrSeededDraftRejected  = &Pause{Kind: KindSeededDraftRejected}
	ErrCoolingExhausted     = &Pause{Kind: KindCoolingExhausted}
	ErrLimiterBlocked       = &Pause{Kind: KindLimiterBlocked}
	ErrReplayDetected       = &Pause{Kind: KindReplayDetected}
)

// Pause is a blocked or refused governance decision.
type Pause struct {
	Kind   Kind
	Reason string
}

// New creates a pause of the given kind.
func New(kind Kind, format string, args ...any) *Pause {
	return &Pause{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (p *Pause) Error() string {
	if p.Reason == "" {
		return "governance pause: " + string(p.Kind)
	}
	return fmt.Sprintf("governance pause (%s): %s", p.Kind, p.Reason)
}

// Is matches sentinels by kind. Truth and stability breaches are also floor
// breaches.
func (p *Pause) Is(target error) bool {
	t, ok := target.(*Pause)
	if !ok {
		return false
	}
	if t.Kind == p.Kind {
		return true
	}
	if t.Kind == KindFloorBreach {
		return p.Kind == KindTruthFloorBreach || p.Kind == KindStabilityFloorBreach
	}
	return false
}

// KindOf returns the kind of the first pause in err's chain.
func KindOf(err error) (Kind, bool) {
	var p *Pause
	if errors.As(err, &p) {
		return p.Kind, true
	}
	return "", false
}
