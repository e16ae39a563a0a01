package psi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/pause"
)

func testFloors(t *testing.T) floors.Config {
	t.Helper()
	cfg, err := floors.Load("")
	require.NoError(t, err)
	return cfg
}

func healthy() Metrics {
	return NewMetrics(1.0, 1.1, 1.05, 1.0, 0.95, 1.0)
}

func TestEvaluate_Healthy(t *testing.T) {
	score, err := Evaluate(healthy(), testFloors(t))
	require.NoError(t, err)

	want := 1.1 * 1.05 * 1.0 * 0.95 * 1.0 / (1.0 + Epsilon)
	assert.InDelta(t, want, score, 1e-9)
}

func TestEvaluate_FloorBreach(t *testing.T) {
	m := healthy()
	m.Truth = 0.9

	_, err := Evaluate(m, testFloors(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, pause.ErrFloorBreach)
	assert.Contains(t, err.Error(), "truth")
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	// every floor met, product too small
	m := NewMetrics(1.0, 0.5, 1.0, 0.95, 0.85, 0.9)

	score, err := Evaluate(m, testFloors(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, pause.ErrBelowThreshold)
	assert.Less(t, score, 0.95)
	assert.Contains(t, err.Error(), "0.95")
}

func TestEvaluate_NonFiniteFailsUnconditionally(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		m := healthy()
		m.Entropy = bad // entropy has no floor
		_, err := Evaluate(m, testFloors(t))
		assert.ErrorIs(t, err, pause.ErrFloorBreach, "entropy=%v", bad)
	}
}

func TestEvaluate_UnknownFloorKeysIgnored(t *testing.T) {
	cfg := floors.New(map[string]float64{
		floors.TriWitness: 5.0,
		"humility":        3.0,
		floors.PsiMin:     0.5,
	})
	_, err := Evaluate(healthy(), cfg)
	assert.NoError(t, err)
}

func TestEvaluate_PsiMinDefault(t *testing.T) {
	// no psi_min configured: 0.95 applies
	cfg := floors.New(map[string]float64{floors.Truth: 0.99})
	m := NewMetrics(1.0, 0.9, 1.0, 1.0, 1.0, 1.0)

	_, err := Evaluate(m, cfg)
	assert.ErrorIs(t, err, pause.ErrBelowThreshold)
}

func TestCompute_ClampAndZeroEntropy(t *testing.T) {
	m := healthy()
	m.Entropy = 0
	assert.Equal(t, MaxScore, Compute(m))

	m.Entropy = -3 // negative entropy is treated as zero
	assert.Equal(t, MaxScore, Compute(m))

	m = healthy()
	m.DeltaS = -1
	assert.Equal(t, 0.0, Compute(m))
}

func TestEvaluate_Repeatable(t *testing.T) {
	cfg := testFloors(t)
	first, err1 := Evaluate(healthy(), cfg)
	second, err2 := Evaluate(healthy(), cfg)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestWithScore(t *testing.T) {
	out := healthy().WithScore(1.23)
	assert.Equal(t, 1.23, out["psi"])
	assert.Len(t, out, 8)
}
