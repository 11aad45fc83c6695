// Package gc prunes old run directories under an out root. The archive keeps
// its rows when a directory goes away, so pruning reclaims disk while history
// stays queryable.
package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sensorlab-io/sensorlab/internal/schema"
	"github.com/sensorlab-io/sensorlab/internal/store"
)

// RunInfo describes one run directory the collector considered.
type RunInfo struct {
	RunID     string    `json:"runId"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"startedAt"`
	Bytes     int64     `json:"bytes"`
}

type Result struct {
	OK          bool      `json:"ok"`
	OutRoot     string    `json:"outRoot"`
	DryRun      bool      `json:"dryRun"`
	Deleted     []RunInfo `json:"deleted,omitempty"`
	Kept        []RunInfo `json:"kept,omitempty"`
	Errors      []string  `json:"errors,omitempty"`
	TotalBefore int64     `json:"totalBeforeBytes"`
	TotalAfter  int64     `json:"totalAfterBytes"`
}

// Opts bound the sweep. A run is deletable when it is older than MaxAgeDays,
// or when the runs directory exceeds MaxTotalBytes (oldest first until under
// budget). The newest KeepLast runs are never deleted.
type Opts struct {
	OutRoot       string
	Now           time.Time
	MaxAgeDays    int
	MaxTotalBytes int64
	KeepLast      int
	DryRun        bool
}

const gcLockWait = 5 * time.Second

// Run scans <outRoot>/runs and deletes what Opts allow. The runs directory
// lock is held throughout so an active harness run cannot race the sweep.
// Directories without a parseable run.json (in-flight or foreign) are left
// alone.
func Run(opts Opts) (Result, error) {
	outRoot := opts.OutRoot
	if outRoot == "" {
		outRoot = ".sensorlab"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	runsDir := filepath.Join(outRoot, "runs")
	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return Result{OK: true, OutRoot: outRoot, DryRun: opts.DryRun}, nil
	}

	var res Result
	err := store.WithDirLock(filepath.Join(runsDir, ".lock"), gcLockWait, func() error {
		var err error
		res, err = sweep(runsDir, outRoot, now, opts)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func sweep(runsDir, outRoot string, now time.Time, opts Opts) (Result, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return Result{}, err
	}

	var runs []RunInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		runDir := filepath.Join(runsDir, e.Name())
		raw, err := os.ReadFile(filepath.Join(runDir, "run.json"))
		if err != nil {
			continue
		}
		var rec schema.RunRecordV1
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.SchemaVersion != schema.RunSchemaV1 {
			continue
		}
		startedAt, err := time.Parse(time.RFC3339Nano, rec.StartedAt)
		if err != nil {
			startedAt, _ = time.Parse(time.RFC3339, rec.StartedAt)
		}
		size, _ := dirSize(runDir)
		runs = append(runs, RunInfo{RunID: rec.RunID, Path: runDir, StartedAt: startedAt, Bytes: size})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})

	var total int64
	for _, r := range runs {
		total += r.Bytes
	}
	res := Result{OK: true, OutRoot: outRoot, DryRun: opts.DryRun, TotalBefore: total, TotalAfter: total}

	protected := make(map[string]bool)
	for i := len(runs) - opts.KeepLast; i < len(runs); i++ {
		if i >= 0 {
			protected[runs[i].RunID] = true
		}
	}

	shouldDelete := make(map[string]bool)
	if opts.MaxAgeDays > 0 {
		cutoff := now.Add(-time.Duration(opts.MaxAgeDays) * 24 * time.Hour)
		for _, r := range runs {
			if protected[r.RunID] {
				continue
			}
			if !r.StartedAt.IsZero() && r.StartedAt.Before(cutoff) {
				shouldDelete[r.RunID] = true
			}
		}
	}

	// Size pressure: project the total after age deletions, then free the
	// oldest survivors until the directory fits.
	if opts.MaxTotalBytes > 0 {
		projected := total
		for _, r := range runs {
			if shouldDelete[r.RunID] {
				projected -= r.Bytes
			}
		}
		for _, r := range runs {
			if projected <= opts.MaxTotalBytes {
				break
			}
			if protected[r.RunID] || shouldDelete[r.RunID] {
				continue
			}
			shouldDelete[r.RunID] = true
			projected -= r.Bytes
		}
	}

	for _, r := range runs {
		if !shouldDelete[r.RunID] {
			res.Kept = append(res.Kept, r)
			continue
		}
		res.Deleted = append(res.Deleted, r)
		res.TotalAfter -= r.Bytes
		if !opts.DryRun {
			if err := os.RemoveAll(r.Path); err != nil {
				res.Errors = append(res.Errors, r.RunID+": "+err.Error())
			}
		}
	}
	res.OK = len(res.Errors) == 0
	return res, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
