package psi

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
)

func genMetrics() gopter.Gen {
	axis := gen.Float64Range(0, 1.5)
	return gopter.CombineGens(axis, axis, axis, axis, axis, axis, gen.Float64Range(0, 2)).
		Map(func(v []interface{}) Metrics {
			return Metrics{
				Truth:   v[0].(float64),
				DeltaS:  v[1].(float64),
				Peace2:  v[2].(float64),
				KappaR:  v[3].(float64),
				Rasa:    v[4].(float64),
				Amanah:  v[5].(float64),
				Entropy: v[6].(float64),
			}
		})
}

// TestFloorMonotonicity: if A passes and B dominates A on every axis, B passes.
func TestFloorMonotonicity(t *testing.T) {
	cfg, _ := floors.Load("")
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("dominating snapshot keeps passing", prop.ForAll(
		func(a Metrics, bump []float64) bool {
			if len(Breaches(a, cfg)) > 0 {
				return true
			}
			b := a
			b.Truth += bump[0]
			b.DeltaS += bump[1]
			b.Peace2 += bump[2]
			b.KappaR += bump[3]
			b.Rasa += bump[4]
			b.Amanah += bump[5]
			return len(Breaches(b, cfg)) == 0
		},
		genMetrics(),
		gen.SliceOfN(6, gen.Float64Range(0, 0.5)),
	))

	properties.TestingRun(t)
}

func TestComputeRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("psi stays within [0, 2]", prop.ForAll(
		func(m Metrics) bool {
			s := Compute(m)
			return s >= 0 && s <= MaxScore
		},
		genMetrics(),
	))

	properties.Property("evaluate is referentially transparent", prop.ForAll(
		func(m Metrics) bool {
			cfg, _ := floors.Load("")
			s1, e1 := Evaluate(m, cfg)
			s2, e2 := Evaluate(m, cfg)
			return s1 == s2 && (e1 == nil) == (e2 == nil)
		},
		genMetrics(),
	))

	properties.TestingRun(t)
}
