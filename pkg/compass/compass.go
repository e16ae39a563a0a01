// Package compass routes a draft to its next pipeline stage.
//
// Routing is conservative: any ambiguous signal escalates toward correction
// (revise or cool) rather than finalization.
package compass

import (
	"strings"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/tone"
)

// Stage is a routing destination.
type Stage string

const (
	Revise   Stage = "revise"
	Cool     Stage = "cool"
	Finalize Stage = "finalize"
)

// HistoryToken is the route-history entry for a routing decision.
func (s Stage) HistoryToken() string { return "compass:" + string(s) }

const (
	// AggressionThreshold is the noise level above which a draft is cooled
	// regardless of its metrics.
	AggressionThreshold = 0.65

	// ConductanceMargin is the band above the κᵣ floor in which conductance
	// is re-derived from the text.
	ConductanceMargin = 0.01
)

// Decision is a routing result with the rule that produced it.
type Decision struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// NoiseScore rates aggression in text on [0, 1]: aggression markers plus one
// for a doubled exclamation mark, per whitespace-separated word, tripled.
func NoiseScore(text string) float64 {
	hits := 0
	for _, tok := range tone.Tokens(text) {
		if tone.IsNegative(tok) {
			hits++
		}
	}
	if strings.Contains(text, "!!") {
		hits++
	}
	words := max(len(strings.Fields(text)), 1)
	raw := float64(hits) / float64(words) * 3
	return min(1, max(0, raw))
}

// Route returns the next stage for draft. It is pure and total.
func Route(task, draft string, m psi.Metrics, cfg floors.Config) Stage {
	return Explain(task, draft, m, cfg).Stage
}

// Explain is Route with the deciding rule attached. Rules are checked in
// order and the first match wins.
func Explain(task, draft string, m psi.Metrics, cfg floors.Config) Decision {
	if NoiseScore(draft) > AggressionThreshold {
		return Decision{Stage: Cool, Reason: "draft noise above aggression threshold"}
	}

	// negated comparisons so NaN never passes a floor
	if !(m.Truth >= cfg.Get(floors.Truth, 0.99)) || !(m.DeltaS >= cfg.Get(floors.DeltaS, 0)) {
		return Decision{Stage: Revise, Reason: "truth or stability below floor"}
	}

	kappaFloor := cfg.Get(floors.KappaR, 0.95)
	if !(m.Peace2 >= cfg.Get(floors.Peace2, 1.0)) || !(m.KappaR >= kappaFloor) {
		return Decision{Stage: Cool, Reason: "peace or conductance below floor"}
	}

	if m.KappaR <= kappaFloor+ConductanceMargin && tone.Conductance(task, draft) < kappaFloor {
		return Decision{Stage: Cool, Reason: "conductance near floor and text recomputation below it"}
	}

	return Decision{Stage: Finalize, Reason: "all routing checks passed"}
}
