package quorum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
)

func TestCheck(t *testing.T) {
	cfg := floors.MustDefault()

	r := Check(0.97, 0.98, 0.99, cfg)
	assert.True(t, r.Met)
	assert.InDelta(t, 0.98, r.Average, 1e-9)
	assert.InDelta(t, 0.95, r.Threshold, 1e-9)

	r = Check(0.97, 0.80, 0.98, cfg)
	assert.False(t, r.Met, "one weak witness fails the quorum")
	assert.Less(t, r.Average, 0.95)
}

func TestCheckThreshold(t *testing.T) {
	r := CheckThreshold(0.90, 0.90, 0.90, 0.85)
	assert.True(t, r.Met)
	assert.InDelta(t, 0.90, r.Average, 1e-9)

	assert.False(t, CheckThreshold(math.NaN(), 1, 1, 0.5).Met)
	assert.False(t, CheckThreshold(1, 1, 1, math.NaN()).Met)
}

func TestCheck_UsesConfiguredFloor(t *testing.T) {
	cfg := floors.New(map[string]float64{floors.TriWitness: 0.5})
	assert.True(t, Check(0.6, 0.6, 0.6, cfg).Met)
}
