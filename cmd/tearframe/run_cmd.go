package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/tearframe/pkg/pause"
	"github.com/Mindburn-Labs/tearframe/pkg/runloop"
)

// pauseReport is printed in place of an outcome when a run is refused.
type pauseReport struct {
	Status string     `json:"status"`
	Kind   pause.Kind `json:"kind"`
	Reason string     `json:"reason"`
}

// runRunCmd implements `tearframe run`.
//
// Exit codes:
//
//	0 = sealed or delayed
//	1 = runtime error
//	2 = usage error
//	3 = governance pause
func runRunCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var task, seed string
	cmd.StringVar(&task, "task", "", "Task description (REQUIRED)")
	cmd.StringVar(&seed, "seed", "", "Caller-supplied draft to start from")

	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	if task == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --task is required")
		return exitUsage
	}

	ctx := context.Background()
	a, err := openApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close(ctx)

	orch, err := runloop.New(a.ledger, a.floors,
		runloop.WithLimiter(a.limiter),
		runloop.WithObservability(a.obs),
		runloop.WithLogger(a.logger.With("component", "runloop")),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	out, err := orch.Run(ctx, runloop.Request{Task: task, SeedDraft: seed})
	if err != nil {
		if kind, ok := pause.KindOf(err); ok {
			_ = writeJSON(stdout, pauseReport{Status: "pause", Kind: kind, Reason: err.Error()})
			return exitPause
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if err := writeJSON(stdout, out); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
