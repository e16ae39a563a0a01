package runloop

import (
	"errors"
	"time"

	"github.com/Mindburn-Labs/tearframe/pkg/compass"
	"github.com/Mindburn-Labs/tearframe/pkg/planner"
	"github.com/Mindburn-Labs/tearframe/pkg/psi"
)

// Status is the terminal state of a run that did not pause.
type Status string

const (
	StatusSealed Status = "sealed"
	StatusDelay  Status = "delay"
)

var (
	errSealedWithoutReceipt = errors.New("runloop: sealed outcome requires a seal id")
	errDelayedWithReceipt   = errors.New("runloop: delayed outcome must not carry a seal id")
)

// Outcome is the caller-facing result of a run.
type Outcome struct {
	Status       Status             `json:"status"`
	Draft        string             `json:"draft"`
	Route        compass.Stage      `json:"route"`
	Psi          float64            `json:"psi"`
	Metrics      psi.Metrics        `json:"metrics"`
	SealID       *string            `json:"seal_id"`
	Plan         planner.Plan       `json:"plan"`
	PlanID       string             `json:"plan_id"`
	Seeded       bool               `json:"seeded"`
	SeedHash     *string            `json:"seed_hash"`
	RouteHistory []string           `json:"route_history"`
	RunID        string             `json:"run_id"`
	ContentHash  string             `json:"content_hash,omitempty"`
	NextAudit    *time.Time         `json:"next_audit,omitempty"`
	Trace        []compass.Decision `json:"trace,omitempty"`
}

// Validate checks the status and seal id agree.
func (o Outcome) Validate() error {
	switch o.Status {
	case StatusSealed:
		if o.SealID == nil || *o.SealID == "" {
			return errSealedWithoutReceipt
		}
	case StatusDelay:
		if o.SealID != nil {
			return errDelayedWithReceipt
		}
	default:
		return errors.New("runloop: unknown outcome status " + string(o.Status))
	}
	return nil
}

func sealedOutcome(o Outcome, sealID, contentHash string, nextAudit time.Time) (Outcome, error) {
	o.Status = StatusSealed
	o.SealID = &sealID
	o.ContentHash = contentHash
	o.NextAudit = &nextAudit
	return o, o.Validate()
}

func delayedOutcome(o Outcome) (Outcome, error) {
	o.Status = StatusDelay
	o.SealID = nil
	return o, o.Validate()
}
