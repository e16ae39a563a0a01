// Package psi computes the composite governance score (Ψ) and enforces metric
// floors.
//
// Ψ = (ΔS · Peace² · κᵣ · Rasa · Amanah) / (max(entropy, 0) + ε), clamped to
// [0, 2]. Evaluation is pure: identical inputs always produce identical
// results.
package psi

import (
	"math"
	"sort"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/pause"
)

// Epsilon keeps the denominator away from zero.
const Epsilon = 1e-9

// MaxScore is the upper clamp for Ψ.
const MaxScore = 2.0

// Metrics is an immutable quality snapshot. Each axis is normalized to
// roughly [0, 1.5].
type Metrics struct {
	Truth   float64 `json:"truth"`
	DeltaS  float64 `json:"delta_s"` // stability delta
	Peace2  float64 `json:"peace2"`  // second-order peace
	KappaR  float64 `json:"kappa_r"` // conductance
	Rasa    float64 `json:"rasa"`    // resonance
	Amanah  float64 `json:"amanah"`  // trust
	Entropy float64 `json:"entropy"`
}

// NewMetrics builds a snapshot with the default entropy of 1.0.
func NewMetrics(truth, deltaS, peace2, kappaR, rasa, amanah float64) Metrics {
	return Metrics{
		Truth:   truth,
		DeltaS:  deltaS,
		Peace2:  peace2,
		KappaR:  kappaR,
		Rasa:    rasa,
		Amanah:  amanah,
		Entropy: 1.0,
	}
}

// AsMap exposes the metrics keyed by their floor names.
func (m Metrics) AsMap() map[string]float64 {
	return map[string]float64{
		floors.Truth:  m.Truth,
		floors.DeltaS: m.DeltaS,
		floors.Peace2: m.Peace2,
		floors.KappaR: m.KappaR,
		floors.Rasa:   m.Rasa,
		floors.Amanah: m.Amanah,
		"entropy":     m.Entropy,
	}
}

// WithScore returns the ledger form of the metrics: AsMap plus "psi".
func (m Metrics) WithScore(score float64) map[string]float64 {
	out := m.AsMap()
	out["psi"] = score
	return out
}

// Breaches returns the sorted names of floors the snapshot fails. Floor keys
// that are not metrics (psi_min, tri_witness) are ignored. A non-finite metric
// always fails, floor or not.
func Breaches(m Metrics, cfg floors.Config) []string {
	values := m.AsMap()
	var failed []string
	for key, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			failed = append(failed, key)
			continue
		}
		limit, ok := cfg.Lookup(key)
		if ok && value < limit {
			failed = append(failed, key)
		}
	}
	sort.Strings(failed)
	return failed
}

// Compute returns the clamped Ψ score without checking floors.
func Compute(m Metrics) float64 {
	numerator := m.DeltaS * m.Peace2 * m.KappaR * m.Rasa * m.Amanah
	denominator := math.Max(m.Entropy, 0) + Epsilon
	return clamp(numerator/denominator, 0, MaxScore)
}

// Evaluate checks floors and returns Ψ. It fails with a FloorBreach pause when
// any floor is breached and with BelowThreshold when Ψ is under psi_min.
func Evaluate(m Metrics, cfg floors.Config) (float64, error) {
	if failed := Breaches(m, cfg); len(failed) > 0 {
		return 0, pause.New(pause.KindFloorBreach, "metric floors breached: %v", failed)
	}

	score := Compute(m)
	minimum := cfg.PsiMin()
	if score < minimum {
		return score, pause.New(pause.KindBelowThreshold, "psi=%.3f below governance floor %.2f", score, minimum)
	}
	return score, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
