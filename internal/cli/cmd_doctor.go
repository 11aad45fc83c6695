package cli

import (
	"fmt"
	"io"

	"github.com/sensorlab-io/sensorlab/internal/doctor"
)

func (r Runner) runDoctor(args []string) int {
	fs := newFlagSet("doctor")
	configPath := fs.String("config", "", "project config path (default sensorlab.yaml)")
	outRoot := fs.String("out-root", "", "output root (default from config/env, else .sensorlab)")
	jsonOut := fs.Bool("json", false, "print checks as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("doctor: invalid flags")
	}
	if *help {
		printDoctorHelp(r.Stdout)
		return 0
	}

	res, err := doctor.Run(*configPath, *outRoot)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeIO, err.Error())
		return 2
	}

	if *jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		fmt.Fprintf(r.Stdout, "Doctor report for %s\n", res.OutRoot)
		for _, c := range res.Checks {
			state := "ok"
			if !c.OK {
				state = "FAIL"
			}
			fmt.Fprintf(r.Stdout, "  %-4s %-16s %s\n", state, c.ID, c.Message)
		}
		if res.OK {
			fmt.Fprintln(r.Stdout, "All checks passed")
		} else {
			fmt.Fprintln(r.Stdout, "Some checks failed")
		}
	}

	if res.OK {
		return 0
	}
	return 1
}

func printDoctorHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: sensorlab doctor [--config <path>] [--out-root <dir>] [--json]

Checks the local setup: config parses, the out root is writable, the
sensor binary resolves, cookbook expectation documents parse, and the
archive opens. Exits 0 when every check passes, 1 otherwise.
`)
}
