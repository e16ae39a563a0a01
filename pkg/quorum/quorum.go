// Package quorum checks tri-witness agreement between human, AI and
// environmental confidence scores.
package quorum

import (
	"github.com/Mindburn-Labs/tearframe/pkg/floors"
)

// Result of a quorum check.
type Result struct {
	Met       bool    `json:"met"`
	Average   float64 `json:"average"`
	Threshold float64 `json:"threshold"`
}

// Check uses the configured tri_witness floor.
func Check(human, ai, earth float64, cfg floors.Config) Result {
	return CheckThreshold(human, ai, earth, cfg.TriWitness())
}

// CheckThreshold passes only when every witness and their mean reach
// threshold. NaN never reaches it.
func CheckThreshold(human, ai, earth, threshold float64) Result {
	avg := (human + ai + earth) / 3
	met := human >= threshold && ai >= threshold && earth >= threshold && avg >= threshold
	return Result{Met: met, Average: avg, Threshold: threshold}
}
