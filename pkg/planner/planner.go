// Package planner drafts responses from a fixed four-phase plan and derives
// metrics snapshots from (task, draft) text.
//
// Everything here is deterministic: the same task always yields the same plan
// identity, draft and metrics.
package planner

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/tearframe/pkg/canonicalize"
	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
)

// Stage is the route-history token and ledger agent for planning.
const Stage = "arif-agi"

// PlanIDLength is the number of hex characters kept from the plan hash.
const PlanIDLength = 16

// RevisionSuffix is appended by Revise.
const RevisionSuffix = "We provide structured reasoning and transparent steps."

// Step is one phase of a plan.
type Step struct {
	Phase  string `json:"phase"`
	Intent string `json:"intent"`
	Focus  string `json:"focus"`
}

// Plan is an ordered set of steps plus a reflection note.
type Plan struct {
	ID         string `json:"plan_id"`
	Task       string `json:"task"`
	Steps      []Step `json:"steps"`
	Reflection string `json:"reflection"`
}

// Response is the output of Respond.
type Response struct {
	Plan    Plan
	Draft   string
	Metrics psi.Metrics
}

// PlanFor builds the Sense, Reflect, Integrate, Express plan for task.
func PlanFor(task string) Plan {
	normalized := strings.TrimSpace(task)
	if normalized == "" {
		normalized = "Unnamed task"
	}

	steps := []Step{
		{
			Phase:  "Sense",
			Intent: fmt.Sprintf("Clarify the request: %s.", normalized),
			Focus:  "Gather context and constraints without judgement.",
		},
		{
			Phase:  "Reflect",
			Intent: "Highlight user goals and emotional cues.",
			Focus:  "Note any safety, empathy, or factual guardrails.",
		},
		{
			Phase:  "Integrate",
			Intent: "Form a compassionate, truthful response outline.",
			Focus:  "Sequence ideas from acknowledgement → guidance → invitation.",
		},
		{
			Phase:  "Express",
			Intent: "Deliver the response with transparency and cooperation.",
			Focus:  "Offer next steps and encourage co-creation.",
		},
	}

	return Plan{
		ID:    PlanID(normalized, steps),
		Task:  normalized,
		Steps: steps,
		Reflection: "Ensure ΔS stays positive, speak with calm clarity, and invite respectful" +
			" collaboration while documenting outcomes in the Cooling Ledger.",
	}
}

// PlanID is the truncated canonical hash of the task and its steps. Field
// order in the input never affects it.
func PlanID(task string, steps []Step) string {
	id, err := canonicalize.ShortHash(map[string]any{"task": task, "steps": steps}, PlanIDLength)
	if err != nil {
		// strings and string-only structs always encode
		panic(fmt.Sprintf("planner: hash plan: %v", err))
	}
	return id
}

// DraftFromPlan renders the plan as a single-paragraph draft.
func DraftFromPlan(task string, p Plan) string {
	lines := []string{
		fmt.Sprintf("Task: %s.", task),
		"We approach with clarity, respect, and cooperative intent.",
		"Plan:",
	}
	for i, s := range p.Steps {
		lines = append(lines, fmt.Sprintf("%d. %s - %s (%s)", i+1, s.Phase, s.Intent, s.Focus))
	}
	lines = append(lines,
		fmt.Sprintf("Reflection: %s", p.Reflection),
		"We conclude with transparent actions and shared follow-ups.",
	)
	return strings.Join(lines, " ")
}

// Respond plans, drafts and scores task. Planning metrics are lifted to the
// configured floors except truth, so only a truth problem can disqualify a
// planned draft.
func Respond(task string, cfg floors.Config) Response {
	p := PlanFor(task)
	draft := DraftFromPlan(task, p)
	return Response{Plan: p, Draft: draft, Metrics: MetricsFromPlan(task, draft, cfg)}
}

// Revise appends the structured-reasoning sentence to draft.
func Revise(draft string) string {
	return draft + " " + RevisionSuffix
}
