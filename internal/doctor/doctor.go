// Package doctor checks whether a lab setup can actually run: config,
// sensor binary, expectation documents, archive, out root.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sensorlab-io/sensorlab/internal/archive"
	"github.com/sensorlab-io/sensorlab/internal/config"
	"github.com/sensorlab-io/sensorlab/internal/expect"
	"github.com/sensorlab-io/sensorlab/internal/ids"
)

type Check struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Result struct {
	OK      bool    `json:"ok"`
	OutRoot string  `json:"outRoot"`
	Checks  []Check `json:"checks"`
}

// Run performs every check and never aborts early: a broken setup should
// surface all of its problems in one pass.
func Run(configPath, outRootFlag string) (Result, error) {
	m, err := config.LoadMerged(configPath, outRootFlag)
	if err != nil {
		// A config the loader rejects is itself the diagnosis.
		out := outRootFlag
		if out == "" {
			out = ".sensorlab"
		}
		return Result{
			OK:      false,
			OutRoot: out,
			Checks:  []Check{{ID: "project_config", OK: false, Message: err.Error()}},
		}, nil
	}

	res := Result{OK: true, OutRoot: m.OutRoot}
	add := func(c Check) {
		if !c.OK {
			res.OK = false
		}
		res.Checks = append(res.Checks, c)
	}

	if m.HasConfig {
		add(Check{ID: "project_config", OK: true, Message: m.ConfigPath})
	} else {
		add(Check{ID: "project_config", OK: true, Message: "missing (ok)"})
	}

	// Write access: create and remove a temp file under the out root.
	if err := os.MkdirAll(m.RunsDir(), 0o755); err != nil {
		add(Check{ID: "write_access", OK: false, Message: err.Error()})
	} else {
		tmp := filepath.Join(m.OutRoot, ".doctor.tmp")
		if err := os.WriteFile(tmp, []byte("ok\n"), 0o644); err != nil {
			add(Check{ID: "write_access", OK: false, Message: err.Error()})
		} else {
			_ = os.Remove(tmp)
			add(Check{ID: "write_access", OK: true})
		}
	}

	if argv := m.SensorCommand(); len(argv) == 0 {
		add(Check{ID: "sensor_binary", OK: true, Message: "sensor.command not configured (ok for validate-only use)"})
	} else if path, err := exec.LookPath(argv[0]); err != nil {
		add(Check{ID: "sensor_binary", OK: false, Message: argv[0] + " not found"})
	} else {
		add(Check{ID: "sensor_binary", OK: true, Message: path})
	}

	if len(m.Project.Cookbooks) == 0 {
		add(Check{ID: "expectations", OK: true, Message: "no cookbooks configured"})
	} else {
		bad := ""
		for _, cb := range m.Project.Cookbooks {
			if _, err := expect.ParseFile(cb.Expect); err != nil {
				bad = cb.Name + ": " + err.Error()
				break
			}
		}
		if bad != "" {
			add(Check{ID: "expectations", OK: false, Message: bad})
		} else {
			add(Check{ID: "expectations", OK: true, Message: fmt.Sprintf("%d documents parse", len(m.Project.Cookbooks))})
		}
	}

	if !m.ArchiveEnabled {
		add(Check{ID: "archive", OK: true, Message: "disabled"})
	} else if db, err := archive.Open(m.ArchivePath); err != nil {
		add(Check{ID: "archive", OK: false, Message: err.Error()})
	} else {
		_ = db.Close()
		add(Check{ID: "archive", OK: true, Message: m.ArchivePath})
	}

	if n, err := countRunDirs(m.RunsDir()); err == nil {
		add(Check{ID: "runs_dir", OK: true, Message: fmt.Sprintf("%d runs recorded", n)})
	} else {
		add(Check{ID: "runs_dir", OK: true, Message: "no runs yet"})
	}

	return res, nil
}

// countRunDirs counts directories whose names parse as run IDs; strangers
// in the runs directory are not runs.
func countRunDirs(path string) (int, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && ids.IsValidRunID(e.Name()) {
			n++
		}
	}
	return n, nil
}
