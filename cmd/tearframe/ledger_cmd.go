package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/tearframe/pkg/runloop"
)

// runVerifyCmd implements `tearframe verify`: exit 0 when every line is
// intact, 1 when any problem is reported.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}

	ctx := context.Background()
	a, err := openApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close(ctx)

	report, err := a.ledger.Verify(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	_ = writeJSON(stdout, report)
	if !report.OK() {
		return exitFailure
	}
	return exitOK
}

func runRecentCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("recent", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		agent string
		n     int
	)
	cmd.StringVar(&agent, "agent", runloop.Agent, "Agent whose records to show")
	cmd.IntVar(&n, "n", 5, "Number of records")
	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}

	ctx := context.Background()
	a, err := openApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close(ctx)

	records, err := a.ledger.Recent(ctx, agent, n)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if records == nil {
		_, _ = fmt.Fprintln(stdout, "[]")
		return exitOK
	}
	_ = writeJSON(stdout, records)
	return exitOK
}

// runResolveCmd maps a receipt back to its ledger record. Receipts issued
// with the in-memory index do not outlive the process that sealed them.
func runResolveCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("resolve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var receipt string
	cmd.StringVar(&receipt, "receipt", "", "Receipt id (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return exitUsage
	}
	if receipt == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --receipt is required")
		return exitUsage
	}

	ctx := context.Background()
	a, err := openApp(ctx, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close(ctx)

	hash, err := a.ledger.Resolve(ctx, receipt)
	if err != nil {
		if isNotFound(err) {
			_, _ = fmt.Fprintf(stderr, "Error: receipt %s not found\n", receipt)
		} else {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitFailure
	}
	rec, err := a.ledger.Lookup(ctx, hash)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	_ = writeJSON(stdout, rec)
	return exitOK
}
