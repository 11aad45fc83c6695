// Package harness runs one cookbook under the sensor and validates the
// resulting capture.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorlab-io/sensorlab/internal/archive"
	"github.com/sensorlab-io/sensorlab/internal/codes"
	"github.com/sensorlab-io/sensorlab/internal/config"
	"github.com/sensorlab-io/sensorlab/internal/ids"
	"github.com/sensorlab-io/sensorlab/internal/logging"
	"github.com/sensorlab-io/sensorlab/internal/redact"
	"github.com/sensorlab-io/sensorlab/internal/report"
	"github.com/sensorlab-io/sensorlab/internal/schema"
	"github.com/sensorlab-io/sensorlab/internal/store"
	"github.com/sensorlab-io/sensorlab/internal/validate"
)

type CliError struct {
	Code    string
	Message string
	Path    string
}

func (e *CliError) Error() string {
	if e.Path == "" {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + " (" + e.Path + ")"
}

func IsCliError(err error, code string) bool {
	var e *CliError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

const runLockWait = 5 * time.Second

// Options select what to run: a named cookbook, or an ad-hoc app command
// with an explicit expectation document.
type Options struct {
	Cookbook string
	AppArgv  []string
	Expect   string
	Config   config.Merged
}

// Outcome is what `harness run` reports.
type Outcome struct {
	RunDir  string
	Record  schema.RunRecordV1
	Verdict *schema.VerdictV1
}

// Run executes one cookbook under the sensor: allocate a run directory,
// start the sensor, run the app, wait for the capture to settle, stop the
// sensor, validate, persist artifacts, archive. The runs directory lock is
// held for the whole run: one sensor per out root at a time.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	cfg := opts.Config

	var cb config.CookbookV1
	if opts.Cookbook != "" {
		found := config.FindCookbook(cfg.Project, opts.Cookbook)
		if found == nil {
			return Outcome{}, &CliError{Code: codes.NotFound, Message: fmt.Sprintf("unknown cookbook %q", opts.Cookbook), Path: cfg.ConfigPath}
		}
		cb = *found
	} else {
		if len(opts.AppArgv) == 0 || opts.Expect == "" {
			return Outcome{}, &CliError{Code: codes.Usage, Message: "either a cookbook or an app command with an expectation document is required"}
		}
		cb = config.CookbookV1{Command: opts.AppArgv, Expect: opts.Expect}
	}
	if len(cfg.SensorCommand()) == 0 {
		return Outcome{}, &CliError{Code: codes.Config, Message: "sensor.command is not configured", Path: cfg.ConfigPath}
	}
	if missing := missingEnv(cb.Env); len(missing) > 0 {
		return Outcome{}, &CliError{Code: codes.EnvMissing, Message: "missing required env: " + strings.Join(missing, ", ")}
	}

	runsDir := cfg.RunsDir()
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return Outcome{}, &CliError{Code: codes.IO, Message: err.Error(), Path: runsDir}
	}

	var out Outcome
	err := store.WithDirLock(filepath.Join(runsDir, ".lock"), runLockWait, func() error {
		var err error
		out, err = runLocked(ctx, cfg, cb)
		return err
	})
	if err != nil {
		if store.IsLockTimeout(err) {
			return Outcome{}, &CliError{Code: codes.LockTimeout, Message: "another harness run is active", Path: runsDir}
		}
		return Outcome{}, err
	}
	return out, nil
}

func runLocked(ctx context.Context, cfg config.Merged, cb config.CookbookV1) (Outcome, error) {
	lg := logging.WithComponent("harness")
	grace := time.Duration(cfg.StopGraceMs) * time.Millisecond

	runID, err := ids.NewRunID(time.Now())
	if err != nil {
		return Outcome{}, err
	}
	runDir := filepath.Join(cfg.RunsDir(), runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return Outcome{}, &CliError{Code: codes.IO, Message: err.Error(), Path: runDir}
	}

	eventsPath := filepath.Join(runDir, "events.jsonl")
	sensorArgv := expandArgv(cfg.SensorCommand(), eventsPath)

	rec := schema.RunRecordV1{
		SchemaVersion: schema.RunSchemaV1,
		RunID:         runID,
		Cookbook:      cb.Name,
		StartedAt:     time.Now().UTC().Format(time.RFC3339Nano),
		SensorCommand: sensorArgv,
		AppCommand:    cb.Command,
		EventsPath:    eventsPath,
		ExpectPath:    cb.Expect,
	}

	// Pre-create the capture so a sensor that never writes still yields an
	// empty capture (a failing verdict) instead of a missing-file error.
	if err := os.WriteFile(eventsPath, nil, 0o644); err != nil {
		return Outcome{}, &CliError{Code: codes.IO, Message: err.Error(), Path: eventsPath}
	}
	lg.Info().Str("run", runID).Str("cookbook", cb.Name).Msg("run directory allocated")

	sensor, err := startSensor(sensorArgv, filepath.Join(runDir, "sensor.log"))
	if err != nil {
		rec.SensorStop = SensorStopSpawnFailed
		finishRun(cfg, runDir, &rec, nil, lg)
		return Outcome{}, &CliError{Code: codes.Spawn, Message: "sensor failed to start: " + err.Error()}
	}
	lg.Info().Str("run", runID).Int("pid", sensor.cmd.Process.Pid).Msg("sensor started")

	// Give the sensor time to attach its probes before traffic flows.
	if !sleepCtx(ctx, time.Duration(cfg.ReadyDelayMs)*time.Millisecond) {
		rec.SensorStop = sensor.stop(grace)
		finishRun(cfg, runDir, &rec, nil, lg)
		return Outcome{}, ctx.Err()
	}

	outFile, err := os.Create(filepath.Join(runDir, "app.out"))
	if err != nil {
		rec.SensorStop = sensor.stop(grace)
		finishRun(cfg, runDir, &rec, nil, lg)
		return Outcome{}, &CliError{Code: codes.IO, Message: err.Error(), Path: runDir}
	}
	defer outFile.Close()
	errFile, err := os.Create(filepath.Join(runDir, "app.err"))
	if err != nil {
		rec.SensorStop = sensor.stop(grace)
		finishRun(cfg, runDir, &rec, nil, lg)
		return Outcome{}, &CliError{Code: codes.IO, Message: err.Error(), Path: runDir}
	}
	defer errFile.Close()

	res, err := runApp(ctx, cb.Command, cb.Dir, outFile, errFile)
	if err != nil {
		rec.SensorStop = sensor.stop(grace)
		finishRun(cfg, runDir, &rec, nil, lg)
		return Outcome{}, &CliError{Code: codes.Spawn, Message: "app failed to start: " + err.Error()}
	}
	rec.AppExitCode = &res.ExitCode
	rec.AppDurationMs = res.DurationMs
	// Previews reach run.json and the archive; scrub credential shapes the
	// cookbook may have printed. The raw streams stay in app.out/app.err.
	outPreview, outApplied := redact.Text(res.OutPreview)
	errPreview, errApplied := redact.Text(res.ErrPreview)
	rec.AppOutPreview = outPreview
	rec.AppErrPreview = errPreview
	if names := append(outApplied.Names, errApplied.Names...); len(names) > 0 {
		lg.Info().Str("run", runID).Strs("categories", names).Msg("redacted secrets from app preview")
	}
	lg.Info().Str("run", runID).Int("exit", res.ExitCode).Int64("ms", res.DurationMs).Msg("app finished")

	outcome, waitedMs := WaitForSettle(ctx, eventsPath,
		time.Duration(cfg.SettleMs)*time.Millisecond,
		time.Duration(cfg.TimeoutMs)*time.Millisecond)
	rec.WaitOutcome = outcome
	rec.WaitMs = waitedMs
	if outcome == WaitTimeout {
		lg.Warn().Str("run", runID).Msg("capture did not settle before timeout")
	}

	rec.SensorStop = sensor.stop(grace)
	if rec.SensorStop == SensorStopKilled {
		lg.Warn().Str("run", runID).Msg("sensor ignored SIGTERM, killed")
	}

	if hasLine, err := store.JSONLHasNonEmptyLine(eventsPath); err == nil && !hasLine {
		lg.Warn().Str("run", runID).Str("code", codes.WarnEmptyCapture).Msg("capture file is empty")
	}

	snapshotExpectation(runDir, cb.Expect, lg)

	verdict, vErr := validate.Run(time.Now(), validate.Options{EventsPath: eventsPath, ExpectPath: cb.Expect})
	var verdictPtr *schema.VerdictV1
	if vErr == nil {
		if err := report.WriteVerdictAtomic(filepath.Join(runDir, "verdict.json"), verdict); err != nil {
			lg.Warn().Str("run", runID).Err(err).Msg("verdict not persisted")
		}
		rec.OK = &verdict.OK
		verdictPtr = &verdict
	}

	finishRun(cfg, runDir, &rec, verdictPtr, lg)
	if vErr != nil {
		return Outcome{}, vErr
	}
	return Outcome{RunDir: runDir, Record: rec, Verdict: verdictPtr}, nil
}

// finishRun stamps the record, persists run.json and feeds the archive.
// Archive failures degrade to a warning: the run directory stays the source
// of truth.
func finishRun(cfg config.Merged, runDir string, rec *schema.RunRecordV1, verdict *schema.VerdictV1, lg zerolog.Logger) {
	rec.FinishedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err := store.WriteJSONAtomic(filepath.Join(runDir, "run.json"), rec); err != nil {
		lg.Warn().Err(err).Msg("run record not persisted")
	}
	if !cfg.ArchiveEnabled {
		return
	}
	db, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		lg.Warn().Str("code", codes.WarnArchiveFailed).Err(err).Msg("archive unavailable")
		return
	}
	defer db.Close()
	if err := db.InsertRun(*rec, verdict); err != nil {
		lg.Warn().Str("code", codes.WarnArchiveFailed).Err(err).Msg("run not archived")
	}
}

// snapshotExpectation copies the expectation document into the run directory
// so later inspection sees exactly what was checked.
func snapshotExpectation(runDir, expectPath string, lg zerolog.Logger) {
	b, err := os.ReadFile(expectPath)
	if err != nil {
		return // validate.Run reports the real error
	}
	ext := filepath.Ext(expectPath)
	if ext == "" {
		ext = ".json"
	}
	if err := store.WriteFileAtomic(filepath.Join(runDir, "expect"+ext), b); err != nil {
		lg.Warn().Err(err).Msg("expectation snapshot not persisted")
	}
}

func missingEnv(names []string) []string {
	var missing []string
	for _, name := range names {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
