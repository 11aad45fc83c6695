package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

// Runner is the sensorlab command dispatcher. Exit codes are part of the
// contract: 0 validation passed, 1 validation failed, 2 infrastructure or
// usage error.
type Runner struct {
	Version string
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return r.runValidate(args[1:])
	case "events":
		return r.runEvents(args[1:])
	case "harness":
		return r.runHarness(args[1:])
	case "runs":
		return r.runRuns(args[1:])
	case "doctor":
		return r.runDoctor(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown command %q\n", codeUsage, args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "%s: failed to encode json\n", codeIO)
		return 2
	}
	return 0
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", codeUsage, msg)
	return 2
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard) // avoid flag package writing to stderr
	return fs
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `sensorlab - validate AI traffic captures from an eBPF sensor

Usage:
  sensorlab validate [--json] <events.jsonl> <expected_events.json|yaml>
  sensorlab events summary [--json] <events.jsonl>
  sensorlab harness run --cookbook <name> [--json]
  sensorlab runs list [--cookbook <name>] [--limit N] [--json]
  sensorlab runs show [--json] <runId>
  sensorlab runs gc (--max-age-days N | --max-bytes N) [--keep-last N] [--dry-run]
  sensorlab doctor [--json]
  sensorlab version

Commands:
  validate        Check a captured event stream against an expectation document.
  events summary  Aggregate a capture: counts, providers, models, tokens.
  harness run     Run a cookbook under the sensor and validate the capture.
  runs list       List archived harness runs.
  runs show       Show one archived run with its verdict.
  runs gc         Prune old run directories (archive rows are kept).
  doctor          Check the lab setup.
  version         Print version.
`)
}
