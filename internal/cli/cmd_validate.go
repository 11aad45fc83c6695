package cli

import (
	"fmt"
	"io"

	"github.com/sensorlab-io/sensorlab/internal/report"
	"github.com/sensorlab-io/sensorlab/internal/validate"
)

func (r Runner) runValidate(args []string) int {
	fs := newFlagSet("validate")
	jsonOut := fs.Bool("json", false, "print the verdict as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("validate: invalid flags")
	}
	if *help {
		printValidateHelp(r.Stdout)
		return 0
	}
	rest := fs.Args()
	if len(rest) != 2 {
		printValidateHelp(r.Stderr)
		return r.failUsage("validate: expected <events.jsonl> <expected_events.json|yaml>")
	}

	verdict, err := validate.Run(r.Now(), validate.Options{EventsPath: rest[0], ExpectPath: rest[1]})
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s\n", err.Error())
		return 2
	}

	if *jsonOut {
		if code := r.writeJSON(verdict); code != 0 {
			return code
		}
	} else {
		report.RenderVerdict(r.Stdout, verdict)
	}
	if verdict.OK {
		return 0
	}
	return 1
}

func printValidateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sensorlab validate [--json] <events.jsonl> <expected_events.json|yaml>

Exits 0 when every expectation is satisfied, 1 when validation fails,
2 on missing or unreadable inputs.
`)
}
