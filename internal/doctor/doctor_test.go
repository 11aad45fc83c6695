package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setEnvClean(t *testing.T) {
	t.Helper()
	t.Setenv("SENSORLAB_OUT_ROOT", "")
	t.Setenv("SENSORLAB_SENSOR_BIN", "")
	t.Setenv("SENSORLAB_LOG_LEVEL", "")
}

func checkByID(t *testing.T, res Result, id string) Check {
	t.Helper()
	for _, c := range res.Checks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("check %q not found in %+v", id, res.Checks)
	return Check{}
}

func TestRun_HealthySetup(t *testing.T) {
	setEnvClean(t)

	dir := t.TempDir()
	outRoot := filepath.Join(dir, "out")
	expectPath := filepath.Join(dir, "expected.json")
	if err := os.WriteFile(expectPath, []byte(`{"events":[{"event_type":"ai.request"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfgPath := filepath.Join(dir, "sensorlab.yaml")
	cfg := `
sensor:
  command: ["` + os.Args[0] + `", "--output", "{events}"]
cookbooks:
  - name: demo
    command: [python, app.py]
    expect: ` + expectPath + `
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Run(cfgPath, outRoot)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.OK || res.OutRoot != outRoot {
		t.Fatalf("result = %+v", res)
	}
	for _, id := range []string{"project_config", "write_access", "sensor_binary", "expectations", "archive", "runs_dir"} {
		if c := checkByID(t, res, id); !c.OK {
			t.Fatalf("check %s failed: %+v", id, c)
		}
	}
}

func TestRun_BadExpectationFailsDoctor(t *testing.T) {
	setEnvClean(t)

	dir := t.TempDir()
	badExpect := filepath.Join(dir, "expected.json")
	if err := os.WriteFile(badExpect, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfgPath := filepath.Join(dir, "sensorlab.yaml")
	cfg := `
cookbooks:
  - name: demo
    command: [run]
    expect: ` + badExpect + `
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Run(cfgPath, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OK {
		t.Fatalf("expected failure: %+v", res)
	}
	c := checkByID(t, res, "expectations")
	if c.OK || !strings.Contains(c.Message, "demo:") {
		t.Fatalf("check = %+v", c)
	}
}

func TestRun_NoConfigIsHealthy(t *testing.T) {
	setEnvClean(t)

	dir := t.TempDir()
	res, err := Run(filepath.Join(dir, "sensorlab.yaml"), filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	if c := checkByID(t, res, "project_config"); c.Message != "missing (ok)" {
		t.Fatalf("check = %+v", c)
	}
	if c := checkByID(t, res, "sensor_binary"); !strings.Contains(c.Message, "not configured") {
		t.Fatalf("check = %+v", c)
	}
}

func TestRun_InvalidConfigIsTheDiagnosis(t *testing.T) {
	setEnvClean(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sensorlab.yaml")
	if err := os.WriteFile(cfgPath, []byte("schemaVersion: 99\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := Run(cfgPath, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OK || len(res.Checks) != 1 || res.Checks[0].ID != "project_config" || res.Checks[0].OK {
		t.Fatalf("res = %+v", res)
	}
}
