package compass

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/planner"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
)

func defaults(t *testing.T) floors.Config {
	t.Helper()
	cfg, err := floors.Load("")
	require.NoError(t, err)
	return cfg
}

func healthy() psi.Metrics {
	return psi.NewMetrics(1.0, 0.5, 1.1, 1.2, 0.95, 1.0)
}

func TestNoiseScore(t *testing.T) {
	assert.InDelta(t, 0.0, NoiseScore(""), 1e-9)
	assert.InDelta(t, 0.6, NoiseScore("This is angry and harsh."), 1e-9)
	assert.InDelta(t, 1.0, NoiseScore("angry toxic"), 1e-9)
	assert.InDelta(t, 1.0, NoiseScore("Stop shouting!! angry"), 1e-9)
}

func TestRoute(t *testing.T) {
	cfg := defaults(t)
	task := "We offer calm support"
	calmDraft := "calm support for everyone"

	tests := []struct {
		name    string
		draft   string
		metrics func() psi.Metrics
		want    Stage
	}{
		{"noisy draft is cooled first", "angry toxic", func() psi.Metrics { m := healthy(); m.Truth = 0.5; return m }, Cool},
		{"low truth revises", calmDraft, func() psi.Metrics { m := healthy(); m.Truth = 0.9; return m }, Revise},
		{"negative stability revises", calmDraft, func() psi.Metrics { m := healthy(); m.DeltaS = -0.1; return m }, Revise},
		{"low peace cools", calmDraft, func() psi.Metrics { m := healthy(); m.Peace2 = 0.9; return m }, Cool},
		{"low conductance cools", calmDraft, func() psi.Metrics { m := healthy(); m.KappaR = 0.9; return m }, Cool},
		{"healthy finalizes", calmDraft, healthy, Finalize},
		{"near-floor conductance confirmed by text finalizes", calmDraft, func() psi.Metrics { m := healthy(); m.KappaR = 0.955; return m }, Finalize},
		{"non-finite truth revises", calmDraft, func() psi.Metrics { m := healthy(); m.Truth = math.NaN(); return m }, Revise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(task, tt.draft, tt.metrics(), cfg))
		})
	}
}

func TestRoute_ConductanceRecheck(t *testing.T) {
	cfg := defaults(t)
	task := "Document cooperative plan"
	r := planner.Respond(task, cfg)

	// planning metrics lift conductance to the floor; the text says otherwise
	require.InDelta(t, 0.95, r.Metrics.KappaR, 1e-9)
	d := Explain(task, r.Draft, r.Metrics, cfg)
	assert.Equal(t, Cool, d.Stage)
	assert.NotEmpty(t, d.Reason)
}

func TestRoute_PlannedDraftFinalizes(t *testing.T) {
	cfg := defaults(t)
	task := "Provide compassionate response"
	r := planner.Respond(task, cfg)
	assert.Equal(t, Finalize, Route(task, r.Draft, r.Metrics, cfg))
}

func TestHistoryToken(t *testing.T) {
	assert.Equal(t, "compass:finalize", Finalize.HistoryToken())
	assert.Equal(t, "compass:cool", Cool.HistoryToken())
}

// TestRouteDeterminism: identical inputs always yield the identical stage.
func TestRouteDeterminism(t *testing.T) {
	cfg := floors.MustDefault()
	drafts := []string{
		"", "calm support", "This is angry and harsh.", "attack!! now",
		"We provide structured reasoning and transparent steps.",
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	axis := gen.Float64Range(-0.5, 1.5)
	properties.Property("route is pure", prop.ForAll(
		func(v []float64, pick int) bool {
			m := psi.NewMetrics(v[0], v[1], v[2], v[3], v[4], v[5])
			draft := drafts[pick]
			first := Route("Calm reply", draft, m, cfg)
			for i := 0; i < 3; i++ {
				if Route("Calm reply", draft, m, cfg) != first {
					return false
				}
			}
			return first == Revise || first == Cool || first == Finalize
		},
		gen.SliceOfN(6, axis),
		gen.IntRange(0, len(drafts)-1),
	))

	properties.TestingRun(t)
}
