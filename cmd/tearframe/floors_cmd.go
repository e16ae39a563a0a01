package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/tearframe/pkg/floors"
	"github.com/Mindburn-Labs/tearframe/pkg/quorum"
)

func runFloorsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("floors", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := floors.Load(os.Getenv(floors.PathEnv))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	_ = writeJSON(stdout, map[string]any{
		"schema_version": cfg.SchemaVersion(),
		"floors":         cfg.Map(),
	})
	return exitOK
}

// runQuorumCmd exits 0 when the witnesses agree and 1 when they do not.
func runQuorumCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("quorum", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var human, ai, earth, threshold float64
	cmd.Float64Var(&human, "human", 0, "Human confidence")
	cmd.Float64Var(&ai, "ai", 0, "AI confidence")
	cmd.Float64Var(&earth, "earth", 0, "Environmental confidence")
	cmd.Float64Var(&threshold, "threshold", 0, "Override the tri_witness floor")
	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}

	var res quorum.Result
	if threshold > 0 {
		res = quorum.CheckThreshold(human, ai, earth, threshold)
	} else {
		cfg, err := floors.Load(os.Getenv(floors.PathEnv))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		res = quorum.Check(human, ai, earth, cfg)
	}
	_ = writeJSON(stdout, res)
	if !res.Met {
		return exitFailure
	}
	return exitOK
}
