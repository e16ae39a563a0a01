// Package cooling adjusts the tone of a draft that routed to the cooling
// stage. It never touches truth: drafts failing truth or stability are
// refused outright, and at most one rewrite is attempted per call.
package cooling

import (
	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/pause"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/tone"
)

// Stage is the route-history token recorded after cooling.
const Stage = "arif-asi"

// RewriteFunc is a single tone-softening attempt.
type RewriteFunc func(text string, targetPeace float64, cfg floors.Config) tone.Rewrite

// Result is the cooled draft.
type Result struct {
	Draft    string           `json:"draft"`
	Tone     tone.Diagnostics `json:"tone"`
	Modified bool             `json:"modified"`
}

// Cooler runs the cooling stage against one floor configuration.
type Cooler struct {
	cfg     floors.Config
	rewrite RewriteFunc
}

// Option configures a Cooler.
type Option func(*Cooler)

// WithRewrite replaces the default tone.Cool rewrite.
func WithRewrite(fn RewriteFunc) Option {
	return func(c *Cooler) { c.rewrite = fn }
}

func New(cfg floors.Config, opts ...Option) *Cooler {
	c := &Cooler{cfg: cfg, rewrite: tone.Cool}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cool is New(cfg).Cool(draft, m).
func Cool(draft string, m psi.Metrics, cfg floors.Config) (Result, error) {
	return New(cfg).Cool(draft, m)
}

// Cool returns draft unmodified when its tone already meets the peace and
// resonance floors. Otherwise it rewrites once toward the peace floor, keeping
// the original if the rewrite reads worse, and fails with CoolingExhausted if
// either floor is still unmet.
func (c *Cooler) Cool(draft string, m psi.Metrics) (Result, error) {
	truthFloor := c.cfg.Get(floors.Truth, 0.99)
	if !(m.Truth >= truthFloor) {
		return Result{}, pause.New(pause.KindTruthFloorBreach,
			"truth %.3f below floor %.2f during cooling", m.Truth, truthFloor)
	}
	deltaFloor := c.cfg.Get(floors.DeltaS, 0)
	if !(m.DeltaS >= deltaFloor) {
		return Result{}, pause.New(pause.KindStabilityFloorBreach,
			"delta_s %.3f below floor %.2f during cooling", m.DeltaS, deltaFloor)
	}

	peaceFloor := c.cfg.Get(floors.Peace2, 1.0)
	rasaFloor := c.cfg.Get(floors.Rasa, 0.85)
	meets := func(d tone.Diagnostics) bool {
		return d.Peace2 >= peaceFloor && d.Rasa >= rasaFloor
	}

	original := tone.Assess(draft, c.cfg)
	if meets(original) {
		return Result{Draft: draft, Tone: original}, nil
	}

	out := Result{Draft: draft, Tone: original}
	if rw := c.rewrite(draft, peaceFloor, c.cfg); rw.Tone.Peace2 >= original.Peace2 {
		out = Result{Draft: rw.Text, Tone: rw.Tone, Modified: rw.Text != draft}
	}

	if !meets(out.Tone) {
		return Result{}, pause.New(pause.KindCoolingExhausted,
			"cooling left peace2=%.3f rasa=%.3f against floors %.2f/%.2f",
			out.Tone.Peace2, out.Tone.Rasa, peaceFloor, rasaFloor)
	}
	return out, nil
}
