package cli

import (
	"fmt"
	"io"

	"github.com/sensorlab-io/sensorlab/internal/capture"
	"github.com/sensorlab-io/sensorlab/internal/report"
)

func (r Runner) runEvents(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printEventsHelp(r.Stdout)
		return 0
	}
	switch args[0] {
	case "summary":
		return r.runEventsSummary(args[1:])
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown events subcommand %q\n", codeUsage, args[0])
		printEventsHelp(r.Stderr)
		return 2
	}
}

func (r Runner) runEventsSummary(args []string) int {
	fs := newFlagSet("events summary")
	jsonOut := fs.Bool("json", false, "print the summary as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("events summary: invalid flags")
	}
	if *help {
		printEventsHelp(r.Stdout)
		return 0
	}
	rest := fs.Args()
	if len(rest) != 1 {
		printEventsHelp(r.Stderr)
		return r.failUsage("events summary: expected <events.jsonl>")
	}

	loaded, err := capture.LoadFile(rest[0])
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeIO, err.Error())
		return 2
	}
	summary := capture.Summarize(rest[0], loaded.Events, loaded.Warnings)

	if *jsonOut {
		return r.writeJSON(summary)
	}
	report.RenderSummary(r.Stdout, summary)
	return 0
}

func printEventsHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sensorlab events summary [--json] <events.jsonl>
`)
}
