package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/sensorlab-io/sensorlab/internal/archive"
	"github.com/sensorlab-io/sensorlab/internal/config"
	"github.com/sensorlab-io/sensorlab/internal/gc"
	"github.com/sensorlab-io/sensorlab/internal/ids"
	"github.com/sensorlab-io/sensorlab/internal/report"
	"github.com/sensorlab-io/sensorlab/internal/schema"
	"github.com/sensorlab-io/sensorlab/internal/store"
)

func (r Runner) runRuns(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRunsHelp(r.Stdout)
		return 0
	}
	switch args[0] {
	case "list":
		return r.runRunsList(args[1:])
	case "show":
		return r.runRunsShow(args[1:])
	case "gc":
		return r.runRunsGC(args[1:])
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown runs subcommand %q\n", codeUsage, args[0])
		printRunsHelp(r.Stderr)
		return 2
	}
}

func (r Runner) runRunsList(args []string) int {
	fs := newFlagSet("runs list")
	configPath := fs.String("config", "", "project config path (default sensorlab.yaml)")
	outRoot := fs.String("out-root", "", "output root (default from config/env, else .sensorlab)")
	cookbook := fs.String("cookbook", "", "filter by cookbook name")
	limit := fs.Int("limit", 0, "max rows (0 = all)")
	jsonOut := fs.Bool("json", false, "print rows as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("runs list: invalid flags")
	}
	if *help {
		printRunsHelp(r.Stdout)
		return 0
	}
	if *limit < 0 {
		return r.failUsage("runs list: --limit must be >= 0")
	}

	m, err := config.LoadMerged(*configPath, *outRoot)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeConfig, err.Error())
		return 2
	}
	db, err := archive.Open(m.ArchivePath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeArchive, err.Error())
		return 2
	}
	defer db.Close()

	rows, err := db.ListRuns(ids.SanitizeComponent(*cookbook), *limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeArchive, err.Error())
		return 2
	}

	if *jsonOut {
		return r.writeJSON(struct {
			OK       bool          `json:"ok"`
			OutRoot  string        `json:"outRoot"`
			Returned int           `json:"returned"`
			Runs     []archive.Row `json:"runs"`
		}{OK: true, OutRoot: m.OutRoot, Returned: len(rows), Runs: rows})
	}

	if len(rows) == 0 {
		fmt.Fprintln(r.Stdout, "No archived runs")
		return 0
	}
	fmt.Fprintf(r.Stdout, "%-24s %-20s %-28s %-5s %s\n", "RUN", "COOKBOOK", "STARTED", "OK", "REQS")
	for _, row := range rows {
		okStr := "-"
		if row.OK != nil {
			if *row.OK {
				okStr = "pass"
			} else {
				okStr = "FAIL"
			}
		}
		reqs := fmt.Sprintf("%d/%d", row.RequirementsTotal-row.RequirementsFailed, row.RequirementsTotal)
		fmt.Fprintf(r.Stdout, "%-24s %-20s %-28s %-5s %s\n", row.RunID, row.Cookbook, row.StartedAt, okStr, reqs)
	}
	return 0
}

func (r Runner) runRunsShow(args []string) int {
	fs := newFlagSet("runs show")
	configPath := fs.String("config", "", "project config path (default sensorlab.yaml)")
	outRoot := fs.String("out-root", "", "output root (default from config/env, else .sensorlab)")
	jsonOut := fs.Bool("json", false, "print the run as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("runs show: invalid flags")
	}
	if *help {
		printRunsHelp(r.Stdout)
		return 0
	}
	rest := fs.Args()
	if len(rest) != 1 {
		printRunsHelp(r.Stderr)
		return r.failUsage("runs show: expected <runId>")
	}
	runID := strings.TrimSpace(rest[0])

	m, err := config.LoadMerged(*configPath, *outRoot)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeConfig, err.Error())
		return 2
	}
	db, err := archive.Open(m.ArchivePath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeArchive, err.Error())
		return 2
	}
	defer db.Close()

	rec, verdict, found, err := db.GetRun(runID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeArchive, err.Error())
		return 2
	}
	if !found {
		fmt.Fprintf(r.Stderr, "%s: run %q not in archive\n", codeNotFound, runID)
		return 2
	}

	if *jsonOut {
		return r.writeJSON(struct {
			OK      bool               `json:"ok"`
			Run     schema.RunRecordV1 `json:"run"`
			Verdict *schema.VerdictV1  `json:"verdict,omitempty"`
		}{OK: true, Run: rec, Verdict: verdict})
	}

	fmt.Fprintf(r.Stdout, "Run %s\n", rec.RunID)
	if rec.Cookbook != "" {
		fmt.Fprintf(r.Stdout, "Cookbook: %s\n", rec.Cookbook)
	}
	fmt.Fprintf(r.Stdout, "Started:  %s\n", rec.StartedAt)
	if rec.FinishedAt != "" {
		fmt.Fprintf(r.Stdout, "Finished: %s\n", rec.FinishedAt)
	}
	if rec.AppExitCode != nil {
		fmt.Fprintf(r.Stdout, "App exit: %d (%d ms)\n", *rec.AppExitCode, rec.AppDurationMs)
	}
	if rec.WaitOutcome != "" {
		fmt.Fprintf(r.Stdout, "Wait:     %s (%d ms)\n", rec.WaitOutcome, rec.WaitMs)
	}
	if rec.SensorStop != "" {
		fmt.Fprintf(r.Stdout, "Sensor:   %s\n", rec.SensorStop)
	}
	if verdict != nil {
		fmt.Fprintln(r.Stdout)
		report.RenderVerdict(r.Stdout, *verdict)
	}
	return 0
}

func (r Runner) runRunsGC(args []string) int {
	fs := newFlagSet("runs gc")
	configPath := fs.String("config", "", "project config path (default sensorlab.yaml)")
	outRoot := fs.String("out-root", "", "output root (default from config/env, else .sensorlab)")
	maxAgeDays := fs.Int("max-age-days", 0, "delete runs older than this many days")
	maxBytes := fs.Int64("max-bytes", 0, "delete oldest runs until the runs directory fits")
	keepLast := fs.Int("keep-last", 0, "never delete the newest N runs")
	dryRun := fs.Bool("dry-run", false, "report without deleting")
	jsonOut := fs.Bool("json", false, "print the sweep result as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("runs gc: invalid flags")
	}
	if *help {
		printRunsHelp(r.Stdout)
		return 0
	}
	if *maxAgeDays <= 0 && *maxBytes <= 0 {
		return r.failUsage("runs gc: need --max-age-days or --max-bytes")
	}

	m, err := config.LoadMerged(*configPath, *outRoot)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeConfig, err.Error())
		return 2
	}

	res, err := gc.Run(gc.Opts{
		OutRoot:       m.OutRoot,
		Now:           r.Now(),
		MaxAgeDays:    *maxAgeDays,
		MaxTotalBytes: *maxBytes,
		KeepLast:      *keepLast,
		DryRun:        *dryRun,
	})
	if err != nil {
		if store.IsLockTimeout(err) {
			fmt.Fprintf(r.Stderr, "%s: another harness run is active\n", codeLockTimeout)
			return 2
		}
		fmt.Fprintf(r.Stderr, "%s: %s\n", codeIO, err.Error())
		return 2
	}

	if *jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		verb := "deleted"
		if res.DryRun {
			verb = "would delete"
		}
		for _, d := range res.Deleted {
			fmt.Fprintf(r.Stdout, "%s %s (%d bytes)\n", verb, d.RunID, d.Bytes)
		}
		fmt.Fprintf(r.Stdout, "%d deleted, %d kept, %d bytes freed\n",
			len(res.Deleted), len(res.Kept), res.TotalBefore-res.TotalAfter)
		for _, e := range res.Errors {
			fmt.Fprintf(r.Stderr, "gc: %s\n", e)
		}
	}
	if res.OK {
		return 0
	}
	return 1
}

func printRunsHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sensorlab runs list [--cookbook <name>] [--limit N] [--json]
  sensorlab runs show [--json] <runId>
  sensorlab runs gc (--max-age-days N | --max-bytes N) [--keep-last N] [--dry-run] [--json]
`)
}
