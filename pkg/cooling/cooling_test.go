package cooling

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/pause"
	"github.com/Mindburn-Labs/tearframe/pkg/planner"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/tone"
)

func defaults(t *testing.T) floors.Config {
	t.Helper()
	cfg, err := floors.Load("")
	require.NoError(t, err)
	return cfg
}

func passing() psi.Metrics {
	return psi.NewMetrics(1.0, 0.85, 0.77, 0.5, 0.58, 1.079)
}

func TestCool_RefusesTruthAndStability(t *testing.T) {
	cfg := defaults(t)

	m := passing()
	m.Truth = 0.9
	_, err := Cool("anything", m, cfg)
	assert.ErrorIs(t, err, pause.ErrTruthFloorBreach)
	assert.ErrorIs(t, err, pause.ErrFloorBreach)

	m = passing()
	m.DeltaS = -0.2
	_, err = Cool("anything", m, cfg)
	assert.ErrorIs(t, err, pause.ErrStabilityFloorBreach)
	assert.ErrorIs(t, err, pause.ErrFloorBreach)
}

func TestCool_CalmDraftUnmodified(t *testing.T) {
	cfg := defaults(t)
	draft := "We respond with calm care and respect."

	res, err := Cool(draft, passing(), cfg)
	require.NoError(t, err)
	assert.False(t, res.Modified)
	assert.Equal(t, draft, res.Draft)
}

func TestCool_SoftensHarshDraft(t *testing.T) {
	cfg := defaults(t)

	res, err := Cool("This is angry and harsh.", passing(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Modified)
	assert.Equal(t, "This is reflect and harsh. "+tone.CalmingPhrase, res.Draft)
	assert.Contains(t, res.Draft, "calm")
	assert.InDelta(t, 1.2038461538461538, res.Tone.Peace2, 1e-9)
}

func TestCool_ExhaustedWhenResonanceStaysLow(t *testing.T) {
	cfg := defaults(t)
	r := planner.Respond("Document cooperative plan", cfg)

	_, err := Cool(r.Draft, r.Metrics, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, pause.ErrCoolingExhausted)
}

func TestCool_DiscardsHarmfulRewrite(t *testing.T) {
	cfg := defaults(t)
	calls := 0
	worse := func(text string, _ float64, cfg floors.Config) tone.Rewrite {
		calls++
		bad := text + " angry angry angry"
		return tone.Rewrite{Text: bad, Tone: tone.Assess(bad, cfg), Modified: true}
	}

	_, err := New(cfg, WithRewrite(worse)).Cool("This is angry and harsh.", passing())
	assert.Equal(t, 1, calls, "one rewrite attempt per call")
	assert.ErrorIs(t, err, pause.ErrCoolingExhausted)
}

// TestCoolDoesNoHarm: a successful cooling never reads worse than its input.
func TestCoolDoesNoHarm(t *testing.T) {
	cfg := floors.MustDefault()
	words := []string{"angry", "harm", "shout", "calm", "care", "respect", "we", "will", "adjust", "plan", "!!"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("cooled tone >= original tone", prop.ForAll(
		func(picks []int) bool {
			parts := make([]string, len(picks))
			for i, p := range picks {
				parts[i] = words[p]
			}
			draft := strings.Join(parts, " ")
			res, err := Cool(draft, passing(), cfg)
			if err != nil {
				_, ok := pause.KindOf(err)
				return ok
			}
			return res.Tone.Peace2 >= tone.Assess(draft, cfg).Peace2
		},
		gen.SliceOf(gen.IntRange(0, len(words)-1)),
	))

	properties.TestingRun(t)
}
