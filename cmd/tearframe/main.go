package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq" // Postgres driver for TEARFRAME_RECEIPTS_DSN
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitPause   = 3
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[1] {
	case "run":
		return runRunCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "recent":
		return runRecentCmd(args[2:], stdout, stderr)
	case "resolve":
		return runResolveCmd(args[2:], stdout, stderr)
	case "floors":
		return runFloorsCmd(args[2:], stdout, stderr)
	case "quorum":
		return runQuorumCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitUsage
	}
}

// ANSI Colors
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
	colorGreen = "\033[32m"
	colorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%stearframe%s\n", colorBold+colorBlue, colorReset)
	_, _ = fmt.Fprintf(w, "%sScore, route, cool, admit, seal.%s\n", colorGray, colorReset)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sUSAGE:%s\n", colorBold, colorReset)
	_, _ = fmt.Fprintln(w, "  tearframe <command> [flags]")
	_, _ = fmt.Fprintln(w, "")

	printSection(w, "PIPELINE")
	printCommand(w, "run", "Run a task through the pipeline (--task, --seed)")

	printSection(w, "LEDGER")
	printCommand(w, "verify", "Check every ledger line (schema, hash, order)")
	printCommand(w, "recent", "Show recent records for an agent (--agent, -n)")
	printCommand(w, "resolve", "Map a receipt to its record (--receipt)")

	printSection(w, "UTILITIES")
	printCommand(w, "floors", "Print the effective floors")
	printCommand(w, "quorum", "Tri-witness check (--human, --ai, --earth)")
	printCommand(w, "help", "Show this help")
	_, _ = fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "%s%s:%s\n", colorBold+colorCyan, title, colorReset)
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %s%-10s%s %s\n", colorGreen, name, colorReset, desc)
}
