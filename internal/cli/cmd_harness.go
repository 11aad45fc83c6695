package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sensorlab-io/sensorlab/internal/config"
	"github.com/sensorlab-io/sensorlab/internal/harness"
	"github.com/sensorlab-io/sensorlab/internal/logging"
	"github.com/sensorlab-io/sensorlab/internal/report"
	"github.com/sensorlab-io/sensorlab/internal/schema"
)

func (r Runner) runHarness(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printHarnessHelp(r.Stdout)
		return 0
	}
	switch args[0] {
	case "run":
		return r.runHarnessRun(args[1:])
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown harness subcommand %q\n", codeUsage, args[0])
		printHarnessHelp(r.Stderr)
		return 2
	}
}

func (r Runner) runHarnessRun(args []string) int {
	fs := newFlagSet("harness run")
	cookbook := fs.String("cookbook", "", "cookbook name from sensorlab.yaml")
	expect := fs.String("expect", "", "expectation document for an ad-hoc app command")
	configPath := fs.String("config", "", "project config path (default sensorlab.yaml)")
	outRoot := fs.String("out-root", "", "output root (default from config/env, else .sensorlab)")
	jsonOut := fs.Bool("json", false, "print the run record and verdict as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("harness run: invalid flags")
	}
	if *help {
		printHarnessHelp(r.Stdout)
		return 0
	}
	appArgv := fs.Args()
	if *cookbook == "" && (*expect == "" || len(appArgv) == 0) {
		printHarnessHelp(r.Stderr)
		return r.failUsage("harness run: need --cookbook, or --expect with an app command")
	}
	if *cookbook != "" && len(appArgv) > 0 {
		return r.failUsage("harness run: --cookbook does not take an app command")
	}

	m, err := config.LoadMerged(*configPath, *outRoot)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeConfig, err.Error())
		return 2
	}
	logging.Init(logging.Config{Level: m.LogLevel, Format: m.LogFormat})

	out, err := harness.Run(context.Background(), harness.Options{
		Cookbook: *cookbook,
		AppArgv:  appArgv,
		Expect:   *expect,
		Config:   m,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s\n", err.Error())
		return 2
	}

	if *jsonOut {
		envelope := struct {
			OK      bool               `json:"ok"`
			RunDir  string             `json:"runDir"`
			Run     schema.RunRecordV1 `json:"run"`
			Verdict *schema.VerdictV1  `json:"verdict,omitempty"`
		}{
			OK:      out.Verdict != nil && out.Verdict.OK,
			RunDir:  out.RunDir,
			Run:     out.Record,
			Verdict: out.Verdict,
		}
		if code := r.writeJSON(envelope); code != 0 {
			return code
		}
	} else {
		if out.Verdict != nil {
			report.RenderVerdict(r.Stdout, *out.Verdict)
		}
		fmt.Fprintf(r.Stdout, "\nRun directory: %s\n", out.RunDir)
	}
	if out.Verdict != nil && out.Verdict.OK {
		return 0
	}
	return 1
}

func printHarnessHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sensorlab harness run --cookbook <name> [--config sensorlab.yaml] [--out-root .sensorlab] [--json]
  sensorlab harness run --expect <doc> [flags] -- <app command...>

Starts the configured sensor, runs the cookbook app (or the given ad-hoc
command), waits for the capture to settle, stops the sensor and validates
the capture against the expectation document.
`)
}
