// Package runloop drives a task through planning, routing, cooling, scoring,
// admission and sealing.
//
// A run either returns an Outcome (sealed or delayed) or a governance pause.
// Persistence is limited to the planning record and the final integration
// record; every other stage is pure.
package runloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Mindburn-Labs/tearframe/pkg/canonicalize"
	"github.com/Mindburn-Labs/tearframe/pkg/compass"
	"github.com/Mindburn-Labs/tearframe/pkg/cooling"
	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/judge"
	"github.com/Mindburn-Labs/tearframe/pkg/limiter"
	"github.com/Mindburn-Labs/tearframe/pkg/observability"
	"github.com/Mindburn-Labs/tearframe/pkg/pause"
	"github.com/Mindburn-Labs/tearframe/pkg/planner"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
	"github.com/Mindburn-Labs/tearframe/pkg/store/ledger"
)

const (
	// Agent is the ledger agent for final decisions.
	Agent = "integration"

	// SeededToken opens the route history of a run that started from a
	// caller-supplied draft.
	SeededToken = "seeded"

	// unseeded stands in for the seed hash in idempotency keys.
	unseeded = "unseeded"
)

// Request is one task submitted to the orchestrator. An empty SeedDraft means
// the planner writes the first draft.
type Request struct {
	Task      string
	SeedDraft string
}

// Collaborators are the text heuristics a run consumes.
type Collaborators struct {
	Respond         func(task string, cfg floors.Config) planner.Response
	PlanFor         func(task string) planner.Plan
	MetricsFromText func(task, draft string, cfg floors.Config) psi.Metrics
	Revise          func(draft string) string
}

// DefaultCollaborators returns the built-in planner heuristics.
func DefaultCollaborators() Collaborators {
	return Collaborators{
		Respond:         planner.Respond,
		PlanFor:         planner.PlanFor,
		MetricsFromText: planner.MetricsFromText,
		Revise:          planner.Revise,
	}
}

// Orchestrator runs tasks against one ledger and floor configuration.
type Orchestrator struct {
	ledger  ledger.Ledger
	cfg     floors.Config
	collab  Collaborators
	cooler  *cooling.Cooler
	limiter *limiter.Limiter
	obs     *observability.Provider
	logger  *slog.Logger
	clock   func() time.Time
	runID   func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithCollaborators(c Collaborators) Option {
	return func(o *Orchestrator) { o.collab = c }
}

func WithCooler(c *cooling.Cooler) Option {
	return func(o *Orchestrator) { o.cooler = c }
}

// WithLimiter replaces the default limiter, which reads admission history
// from the orchestrator's ledger.
func WithLimiter(l *limiter.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

func WithObservability(p *observability.Provider) Option {
	return func(o *Orchestrator) { o.obs = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the clock used for audit scheduling.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithRunID overrides the run identifier source.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.runID = fn }
}

// New creates an orchestrator. Telemetry defaults to the global otel
// providers.
func New(l ledger.Ledger, cfg floors.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		ledger: l,
		cfg:    cfg,
		collab: DefaultCollaborators(),
		logger: slog.Default().With("component", "runloop"),
		clock:  time.Now,
		runID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cooler == nil {
		o.cooler = cooling.New(cfg)
	}
	if o.limiter == nil {
		o.limiter = limiter.New(l, cfg, limiter.WithLogger(o.logger))
	}
	if o.obs == nil {
		p, err := observability.NewWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("runloop telemetry: %w", err)
		}
		o.obs = p
	}
	return o, nil
}

// run is the mutable state of a single task.
type run struct {
	id       string
	task     string
	seeded   bool
	seedHash string
	plan     planner.Plan
	draft    string
	metrics  psi.Metrics
	route    compass.Stage
	history  []string
	trace    []compass.Decision
	score    float64
}

// Run executes one task end to end.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Outcome, error) {
	r := &run{id: o.runID(), task: req.Task}

	ctx, end := o.obs.TrackRun(ctx, attribute.String("run_id", r.id))
	out, err := o.execute(ctx, r, req)
	end(err)

	logger := o.logger.With("run_id", r.id, "plan_id", r.plan.ID)
	if err != nil {
		if kind, ok := pause.KindOf(err); ok {
			o.obs.RecordPause(ctx, string(kind))
			logger.WarnContext(ctx, "run paused", "kind", kind, "reason", err.Error(), "route_history", r.history)
		} else {
			logger.ErrorContext(ctx, "run failed", "error", err)
		}
		return Outcome{}, err
	}

	o.obs.RecordOutcome(ctx, string(out.Status))
	logger.InfoContext(ctx, "run finished", "status", out.Status, "psi", out.Psi, "route", out.Route)
	return out, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, req Request) (Outcome, error) {
	if err := o.stage(ctx, r, "bootstrap", func(ctx context.Context) error {
		return o.bootstrap(ctx, r, req.SeedDraft)
	}); err != nil {
		return Outcome{}, err
	}

	if err := o.stage(ctx, r, "route", func(context.Context) error {
		o.routeDraft(r)
		return nil
	}); err != nil {
		return Outcome{}, err
	}

	if r.route == compass.Cool {
		if err := o.stage(ctx, r, "cool", func(context.Context) error {
			return o.cool(r)
		}); err != nil {
			return Outcome{}, err
		}
	}

	if err := o.stage(ctx, r, "score", func(ctx context.Context) error {
		verdict := judge.Judge(r.metrics, o.cfg)
		o.logger.DebugContext(ctx, "verdict", "run_id", r.id, "reason", verdict.Reason)
		if !verdict.Allowed {
			return verdict.Err
		}
		r.score = verdict.Score
		o.obs.RecordScore(ctx, verdict.Score)
		return nil
	}); err != nil {
		return Outcome{}, err
	}

	var decision limiter.Decision
	if err := o.stage(ctx, r, "limit", func(ctx context.Context) error {
		var err error
		decision, err = o.limiter.Admit(ctx, Agent, r.metrics, r.score)
		return err
	}); err != nil {
		return Outcome{}, err
	}

	switch decision {
	case limiter.Delay:
		return delayedOutcome(r.outcome())
	case limiter.Block:
		return Outcome{}, pause.New(pause.KindLimiterBlocked,
			"psi=%.3f refused by limiter for %s", r.score, Agent)
	}

	var out Outcome
	err := o.stage(ctx, r, "seal", func(ctx context.Context) error {
		sealed, err := o.seal(ctx, r)
		if err != nil {
			return err
		}
		r.history = append(r.history, Agent)
		out, err = sealedOutcome(r.outcome(), sealed.ReceiptID, sealed.ContentHash, judge.NextAudit(o.clock()))
		return err
	})
	return out, err
}

// stage wraps fn in a span named after the stage.
func (o *Orchestrator) stage(ctx context.Context, r *run, name string, fn func(context.Context) error) error {
	ctx, span := o.obs.StartSpan(ctx, "tearframe."+name, attribute.String("run_id", r.id))
	defer span.End()

	err := fn(ctx)
	if r.plan.ID != "" {
		span.SetAttributes(attribute.String("plan_id", r.plan.ID))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	o.logger.DebugContext(ctx, "stage complete",
		"run_id", r.id, "stage", name, "route_history", r.history)
	return nil
}

func (o *Orchestrator) bootstrap(ctx context.Context, r *run, seed string) error {
	if seed != "" {
		r.seeded = true
		r.seedHash = canonicalize.HashText(seed)
		r.plan = o.collab.PlanFor(r.task)
		r.draft = seed
		r.metrics = o.collab.MetricsFromText(r.task, seed, o.cfg)
		r.history = []string{SeededToken}

		truth := o.cfg.Get(floors.Truth, 0)
		stability := o.cfg.Get(floors.DeltaS, 0)
		if !(r.metrics.Truth >= truth) || !(r.metrics.DeltaS >= stability) {
			return pause.New(pause.KindSeededDraftRejected,
				"seed draft breaches floors (truth=%.3f, delta_s=%.3f)", r.metrics.Truth, r.metrics.DeltaS)
		}
		return nil
	}

	resp := o.collab.Respond(r.task, o.cfg)
	r.plan = resp.Plan
	r.draft = resp.Draft
	r.metrics = resp.Metrics
	r.history = []string{planner.Stage}

	// Planning records only what passes the floors; a failing draft goes on
	// to routing and revision.
	score, err := psi.Evaluate(r.metrics, o.cfg)
	if err != nil {
		o.logger.InfoContext(ctx, "planning draft not recorded",
			"run_id", r.id, "plan_id", r.plan.ID, "reason", err.Error())
		return nil
	}
	return o.recordPlan(ctx, r, score)
}

func (o *Orchestrator) recordPlan(ctx context.Context, r *run, score float64) error {
	draftHash := canonicalize.HashText(r.draft)
	key, err := idempotencyKey(r.plan.ID, draftHash, planner.Stage, unseeded, r.history)
	if err != nil {
		return err
	}
	_, err = o.ledger.Append(ctx, ledger.Entry{
		Agent:          planner.Stage,
		Metrics:        r.metrics.WithScore(score),
		Note:           "task=" + r.task,
		IdempotencyKey: key,
		Metadata: map[string]any{
			ledger.PlanIDKey: r.plan.ID,
			"stage":          planner.Stage,
			"draft_hash":     draftHash,
		},
	})
	return err
}

// routeDraft routes once and, on revise, rewrites and routes one more time.
// A second revise falls through to scoring.
func (o *Orchestrator) routeDraft(r *run) {
	d := compass.Explain(r.task, r.draft, r.metrics, o.cfg)
	r.record(d)
	if d.Stage == compass.Revise {
		r.draft = o.collab.Revise(r.draft)
		r.metrics = o.collab.MetricsFromText(r.task, r.draft, o.cfg)
		r.record(compass.Explain(r.task, r.draft, r.metrics, o.cfg))
	}
}

func (o *Orchestrator) cool(r *run) error {
	res, err := o.cooler.Cool(r.draft, r.metrics)
	if err != nil {
		return err
	}
	r.draft = res.Draft
	r.metrics = o.collab.MetricsFromText(r.task, r.draft, o.cfg)
	r.history = append(r.history, cooling.Stage, compass.Finalize.HistoryToken())
	r.route = compass.Finalize
	return nil
}

func (o *Orchestrator) seal(ctx context.Context, r *run) (judge.Sealed, error) {
	draftHash := canonicalize.HashText(r.draft)
	seed := unseeded
	if r.seeded {
		seed = r.seedHash
	}
	key, err := idempotencyKey(r.plan.ID, draftHash, string(r.route), seed, r.history)
	if err != nil {
		return judge.Sealed{}, err
	}

	history := append(append([]string(nil), r.history...), Agent)
	metadata := map[string]any{
		"stage":         Agent,
		"seeded":        r.seeded,
		"seed_hash":     nil,
		"route_history": history,
		"draft_hash":    draftHash,
	}
	if r.seeded {
		metadata["seed_hash"] = r.seedHash
	}

	return judge.SealIfLawful(ctx, o.ledger, o.cfg, judge.Request{
		Agent:          Agent,
		Metrics:        r.metrics,
		Note:           r.task,
		PlanID:         r.plan.ID,
		IdempotencyKey: key,
		Metadata:       metadata,
	})
}

func (r *run) record(d compass.Decision) {
	r.route = d.Stage
	r.history = append(r.history, d.Stage.HistoryToken())
	r.trace = append(r.trace, d)
}

func (r *run) outcome() Outcome {
	out := Outcome{
		Draft:        r.draft,
		Route:        r.route,
		Psi:          r.score,
		Metrics:      r.metrics,
		Plan:         r.plan,
		PlanID:       r.plan.ID,
		Seeded:       r.seeded,
		RouteHistory: append([]string(nil), r.history...),
		RunID:        r.id,
		Trace:        r.trace,
	}
	if r.seeded {
		h := r.seedHash
		out.SeedHash = &h
	}
	return out
}

// idempotencyKey binds a decision to its plan, draft, stage, seed and route.
func idempotencyKey(planID, draftHash, stage, seed string, history []string) (string, error) {
	routeSig, err := canonicalize.CanonicalHash(history)
	if err != nil {
		return "", fmt.Errorf("route signature: %w", err)
	}
	key, err := canonicalize.CanonicalHash(map[string]any{
		"plan_id":    planID,
		"draft_hash": draftHash,
		"stage":      stage,
		"seed":       seed,
		"route_sig":  routeSig,
	})
	if err != nil {
		return "", fmt.Errorf("idempotency key: %w", err)
	}
	return key, nil
}
