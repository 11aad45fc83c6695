package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sensorlab-io/sensorlab/internal/archive"
	"github.com/sensorlab-io/sensorlab/internal/codes"
	"github.com/sensorlab-io/sensorlab/internal/schema"
)

// TestHelperToolProcess stands in for the sensor and the cookbook app.
// It only acts when re-executed with GO_WANT_HELPER_PROCESS=1; directives
// come after the "--" separator (events=, lines=, stdout=, sleepms=, exit=).
func TestHelperToolProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	var stdout, stderrText, eventsPath, lines string
	exit := 0
	sleepMs := 0
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "stdout="):
			stdout = strings.TrimPrefix(a, "stdout=")
		case strings.HasPrefix(a, "stderr="):
			stderrText = strings.TrimPrefix(a, "stderr=")
		case strings.HasPrefix(a, "events="):
			eventsPath = strings.TrimPrefix(a, "events=")
		case strings.HasPrefix(a, "lines="):
			lines = strings.TrimPrefix(a, "lines=")
		case strings.HasPrefix(a, "exit="):
			exit, _ = strconv.Atoi(strings.TrimPrefix(a, "exit="))
		case strings.HasPrefix(a, "sleepms="):
			sleepMs, _ = strconv.Atoi(strings.TrimPrefix(a, "sleepms="))
		}
	}
	if eventsPath != "" && lines != "" {
		f, err := os.OpenFile(eventsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strings.ReplaceAll(lines, "|", "\n") + "\n")
			_ = f.Close()
		}
	}
	if stdout != "" {
		fmt.Fprintln(os.Stdout, stdout)
	}
	if stderrText != "" {
		fmt.Fprintln(os.Stderr, stderrText)
	}
	if sleepMs > 0 {
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}
	os.Exit(exit)
}

func setLabEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("SENSORLAB_OUT_ROOT", "")
	t.Setenv("SENSORLAB_SENSOR_BIN", "")
	t.Setenv("SENSORLAB_LOG_LEVEL", "")
}

// writeLabConfig lays out a project config whose sensor and cookbook apps
// re-exec this test binary via the helper process.
func writeLabConfig(t *testing.T, dir, outRoot string) string {
	t.Helper()
	exe := os.Args[0]
	expectPass := writeFixture(t, dir, "expect_pass.json", `{
  "minimum_events": 2,
  "events": [
    {"event_type": "ai.request", "required_fields": {"data.model.id": "/gpt-/"}},
    {"event_type": "ai.response", "required_fields": {"data.success": true}}
  ]
}`)
	expectFail := writeFixture(t, dir, "expect_fail.json", `{"events":[{"event_type":"ai.embedding"}]}`)

	sensorLines := `{"event_type":"ai.request","data":{"model":{"id":"gpt-4o"},"provider":{"name":"openai"}}}|{"event_type":"ai.response","data":{"success":true}}`
	body := fmt.Sprintf(`schemaVersion: 1
outRoot: '%s'
logging:
  level: error
sensor:
  command:
    - '%s'
    - '-test.run=TestHelperToolProcess$'
    - '--'
    - 'events={events}'
    - 'lines=%s'
    - 'sleepms=30000'
  readyDelayMs: 100
  stopGraceMs: 5000
wait:
  settleMs: 300
  timeoutMs: 10000
archive:
  enabled: true
cookbooks:
  - name: demo
    command: ['%s', '-test.run=TestHelperToolProcess$', '--', 'stdout=app done']
    expect: '%s'
  - name: broken
    command: ['%s', '-test.run=TestHelperToolProcess$', '--', 'stdout=app done']
    expect: '%s'
`, outRoot, exe, sensorLines, exe, expectPass, exe, expectFail)
	return writeFixture(t, dir, "sensorlab.yaml", body)
}

func TestHarnessLifecycle_EndToEnd(t *testing.T) {
	setLabEnv(t)
	dir := t.TempDir()
	outRoot := filepath.Join(dir, ".sensorlab")
	cfgPath := writeLabConfig(t, dir, outRoot)

	// harness run: sensor captures two events, cookbook passes.
	r, stdout, stderr := newTestRunner()
	code := r.Run([]string{"harness", "run", "--config", cfgPath, "--cookbook", "demo"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr=%q stdout=%q)", code, stderr.String(), stdout.String())
	}
	out := stdout.String()
	assertContains(t, out, "SUCCESS: All 2 expected events found")
	assertContains(t, out, "Run directory: ")

	var runDir string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Run directory: ") {
			runDir = strings.TrimPrefix(line, "Run directory: ")
		}
	}
	if runDir == "" {
		t.Fatalf("run directory missing from output:\n%s", out)
	}
	runID := filepath.Base(runDir)

	// runs list shows the archived run.
	r2, stdout2, _ := newTestRunner()
	if code := r2.Run([]string{"runs", "list", "--config", cfgPath}); code != 0 {
		t.Fatalf("runs list exited %d", code)
	}
	assertContains(t, stdout2.String(), runID)
	assertContains(t, stdout2.String(), "demo")
	assertContains(t, stdout2.String(), "pass")

	// runs list --json decodes.
	r3, stdout3, _ := newTestRunner()
	if code := r3.Run([]string{"runs", "list", "--json", "--config", cfgPath}); code != 0 {
		t.Fatalf("runs list --json exited %d", code)
	}
	var listed struct {
		OK       bool          `json:"ok"`
		Returned int           `json:"returned"`
		Runs     []archive.Row `json:"runs"`
	}
	if err := json.Unmarshal(stdout3.Bytes(), &listed); err != nil {
		t.Fatalf("decode runs list: %v (stdout=%q)", err, stdout3.String())
	}
	if !listed.OK || listed.Returned != 1 || len(listed.Runs) != 1 {
		t.Fatalf("unexpected list envelope: %+v", listed)
	}
	if listed.Runs[0].RunID != runID || listed.Runs[0].OK == nil || !*listed.Runs[0].OK {
		t.Fatalf("unexpected row: %+v", listed.Runs[0])
	}

	// runs show renders the stored verdict.
	r4, stdout4, _ := newTestRunner()
	if code := r4.Run([]string{"runs", "show", "--config", cfgPath, runID}); code != 0 {
		t.Fatalf("runs show exited %d", code)
	}
	assertContains(t, stdout4.String(), "Run "+runID)
	assertContains(t, stdout4.String(), "Cookbook: demo")
	assertContains(t, stdout4.String(), "SUCCESS: All 2 expected events found")

	// runs show --json round-trips the record.
	r5, stdout5, _ := newTestRunner()
	if code := r5.Run([]string{"runs", "show", "--json", "--config", cfgPath, runID}); code != 0 {
		t.Fatalf("runs show --json exited %d", code)
	}
	var shown struct {
		OK      bool               `json:"ok"`
		Run     schema.RunRecordV1 `json:"run"`
		Verdict *schema.VerdictV1  `json:"verdict"`
	}
	if err := json.Unmarshal(stdout5.Bytes(), &shown); err != nil {
		t.Fatalf("decode runs show: %v", err)
	}
	if shown.Run.RunID != runID || shown.Verdict == nil || !shown.Verdict.OK {
		t.Fatalf("unexpected show envelope: run=%+v verdict=%+v", shown.Run, shown.Verdict)
	}

	// runs show for an unknown id is a not-found failure.
	r6, _, stderr6 := newTestRunner()
	if code := r6.Run([]string{"runs", "show", "--config", cfgPath, "20990101-000000Z-ffffff"}); code != 2 {
		t.Fatalf("expected exit 2 for unknown run, got %d", code)
	}
	if !strings.Contains(stderr6.String(), codes.NotFound) {
		t.Fatalf("expected %s on stderr, got %q", codes.NotFound, stderr6.String())
	}

	// doctor agrees the setup is healthy.
	r7, stdout7, stderr7 := newTestRunner()
	if code := r7.Run([]string{"doctor", "--config", cfgPath}); code != 0 {
		t.Fatalf("doctor exited %d (stderr=%q stdout=%q)", code, stderr7.String(), stdout7.String())
	}
	assertContains(t, stdout7.String(), "project_config")
	assertContains(t, stdout7.String(), "sensor_binary")
	assertContains(t, stdout7.String(), "All checks passed")

	// gc: the fresh run survives the age rule, then size pressure sweeps it.
	r8, stdout8, _ := newTestRunner()
	if code := r8.Run([]string{"runs", "gc", "--config", cfgPath, "--max-age-days", "365"}); code != 0 {
		t.Fatalf("runs gc exited %d", code)
	}
	assertContains(t, stdout8.String(), "0 deleted, 1 kept")

	r9, stdout9, _ := newTestRunner()
	if code := r9.Run([]string{"runs", "gc", "--config", cfgPath, "--max-bytes", "1"}); code != 0 {
		t.Fatalf("runs gc sweep exited %d", code)
	}
	assertContains(t, stdout9.String(), "deleted "+runID)
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Fatalf("run dir survived gc: %v", err)
	}

	// The archive row outlives the swept directory.
	r10, stdout10, _ := newTestRunner()
	if code := r10.Run([]string{"runs", "show", "--config", cfgPath, runID}); code != 0 {
		t.Fatalf("runs show after gc exited %d", code)
	}
	assertContains(t, stdout10.String(), "Run "+runID)
}

func TestRunsGC_RequiresABound(t *testing.T) {
	t.Parallel()
	r, _, stderr := newTestRunner()
	if code := r.Run([]string{"runs", "gc"}); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), codes.Usage) {
		t.Fatalf("expected %s on stderr, got %q", codes.Usage, stderr.String())
	}
}

func TestHarnessRun_FailingCookbookExitsOne(t *testing.T) {
	setLabEnv(t)
	dir := t.TempDir()
	outRoot := filepath.Join(dir, ".sensorlab")
	cfgPath := writeLabConfig(t, dir, outRoot)

	r, stdout, stderr := newTestRunner()
	code := r.Run([]string{"harness", "run", "--json", "--config", cfgPath, "--cookbook", "broken"})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d (stderr=%q)", code, stderr.String())
	}

	var envelope struct {
		OK      bool               `json:"ok"`
		RunDir  string             `json:"runDir"`
		Run     schema.RunRecordV1 `json:"run"`
		Verdict *schema.VerdictV1  `json:"verdict"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		t.Fatalf("decode harness envelope: %v (stdout=%q)", err, stdout.String())
	}
	if envelope.OK || envelope.Verdict == nil || envelope.Verdict.OK {
		t.Fatalf("expected failing verdict, got %+v", envelope)
	}
	if envelope.Run.SensorStop != "graceful" {
		t.Fatalf("sensorStop = %q, want graceful", envelope.Run.SensorStop)
	}
	if envelope.RunDir == "" {
		t.Fatalf("runDir missing")
	}
	if _, err := os.Stat(filepath.Join(envelope.RunDir, "verdict.json")); err != nil {
		t.Fatalf("verdict artifact missing: %v", err)
	}
}

func TestHarnessRun_UsageAndUnknownCookbook(t *testing.T) {
	setLabEnv(t)
	dir := t.TempDir()
	cfgPath := writeLabConfig(t, dir, filepath.Join(dir, ".sensorlab"))

	{
		r, _, stderr := newTestRunner()
		if code := r.Run([]string{"harness", "run", "--config", cfgPath}); code != 2 {
			t.Fatalf("expected exit 2 without --cookbook, got %d", code)
		}
		if !strings.Contains(stderr.String(), codes.Usage) {
			t.Fatalf("expected %s on stderr, got %q", codes.Usage, stderr.String())
		}
	}
	{
		r, _, stderr := newTestRunner()
		if code := r.Run([]string{"harness", "run", "--config", cfgPath, "--cookbook", "nope"}); code != 2 {
			t.Fatalf("expected exit 2 for unknown cookbook, got %d", code)
		}
		if !strings.Contains(stderr.String(), codes.NotFound) {
			t.Fatalf("expected %s on stderr, got %q", codes.NotFound, stderr.String())
		}
	}
}
