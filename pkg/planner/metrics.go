package planner

import (
	"math"
	"strings"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/tone"
)

var hostileMarkers = []string{"harm", "violence", "attack"}

// MetricsFromPlan scores a planner-produced draft.
func MetricsFromPlan(task, draft string, cfg floors.Config) psi.Metrics {
	t := tone.Assess(draft, cfg)
	kappa := tone.Conductance(task, draft)

	truth := math.Max(0, planTruth(task, draft))
	rasa := math.Min(1.2, math.Max(cfg.Get(floors.Rasa, 0.85), t.Rasa+0.04))

	return psi.Metrics{
		Truth:   truth,
		DeltaS:  math.Max(cfg.Get(floors.DeltaS, 0), planDeltaS(task, draft)),
		Peace2:  math.Min(1.5, math.Max(cfg.Get(floors.Peace2, 1.0), t.Peace2+0.05)),
		KappaR:  math.Min(1.5, math.Max(kappa, cfg.Get(floors.KappaR, 0.95))),
		Rasa:    rasa,
		Amanah:  math.Max(cfg.Get(floors.Amanah, 0.9), math.Min(1.2, 0.94+0.05*truth+0.05*rasa)),
		Entropy: 1.0,
	}
}

// MetricsFromText scores an arbitrary (task, draft) pair with no floor
// lifting. A draft that already carries structured reasoning and resonates
// well is credited with floor-level conductance.
func MetricsFromText(task, draft string, cfg floors.Config) psi.Metrics {
	t := tone.Assess(draft, cfg)
	kappaFloor := cfg.Get(floors.KappaR, 0.95)

	conductance := tone.Conductance(task, draft)
	if conductance < kappaFloor &&
		t.Rasa >= cfg.Get(floors.Rasa, 0.85) &&
		strings.Contains(strings.ToLower(draft), "structured reasoning") {
		conductance = kappaFloor
	}

	truth := textTruth(task, draft)
	return psi.Metrics{
		Truth:   truth,
		DeltaS:  textDeltaS(task, draft),
		Peace2:  t.Peace2,
		KappaR:  conductance,
		Rasa:    t.Rasa,
		Amanah:  math.Min(1.1, 0.9+truth*0.15+t.Rasa*0.05),
		Entropy: 1.0,
	}
}

func planTruth(task, draft string) float64 {
	lowered := strings.ToLower(task + " " + draft)
	switch {
	case containsAny(lowered, hostileMarkers...):
		return 0.9
	case containsAny(lowered, "evidence", "step"):
		return 1.02
	case strings.Contains(lowered, "speculative"):
		return 0.97
	default:
		return 1.0
	}
}

func planDeltaS(task, draft string) float64 {
	lowered := strings.ToLower(draft)
	switch {
	case containsAny(lowered, hostileMarkers...):
		return -0.2
	case containsAny(lowered, "calm", "care", "support", "cooperate"):
		return 1.1
	case strings.Contains(strings.ToLower(task), "edge case"):
		return 0.9
	default:
		return 0.75
	}
}

func textTruth(task, draft string) float64 {
	lowTask, lowDraft := strings.ToLower(task), strings.ToLower(draft)
	switch {
	case strings.Contains(lowTask, "harm") || strings.Contains(lowDraft, "harm"):
		return 0.9
	case containsAny(lowDraft, "structured reasoning", "transparent steps"):
		return 1.0
	case strings.Contains(lowDraft, "speculative"):
		return 0.97
	case strings.Contains(lowTask, "edge case"):
		return 0.96
	default:
		return 1.0
	}
}

func textDeltaS(task, draft string) float64 {
	lowered := strings.ToLower(draft)
	switch {
	case containsAny(lowered, hostileMarkers...):
		return -0.2
	case strings.Contains(strings.ToLower(task), "edge case"):
		return 0.94
	case containsAny(lowered, "care", "support", "calm", "respect"):
		return 1.2
	default:
		return 0.85
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
