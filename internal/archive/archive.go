// Package archive keeps a queryable history of harness runs in sqlite.
// Run directories under the out root stay the source of truth; the archive is
// an index over them that survives `rm -rf` of individual runs.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sensorlab-io/sensorlab/internal/schema"
	"github.com/sensorlab-io/sensorlab/internal/store"
)

type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := initRunsSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (a *DB) Close() error {
	return a.db.Close()
}

func initRunsSchema(db *sql.DB) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id              TEXT PRIMARY KEY,
		cookbook            TEXT,
		started_at          TEXT NOT NULL,
		finished_at         TEXT,
		ok                  INTEGER,            -- NULL until validation ran
		events_total        INTEGER NOT NULL DEFAULT 0,
		requirements_total  INTEGER NOT NULL DEFAULT 0,
		requirements_failed INTEGER NOT NULL DEFAULT 0,
		run_json            TEXT NOT NULL,      -- full run record
		verdict_json        TEXT                -- full verdict, when one exists
	);`

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_cookbook ON runs(cookbook);",
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Row is the list view of one archived run. Counters are denormalized from
// the verdict so `runs list` never has to parse stored documents.
type Row struct {
	RunID      string `json:"runId"`
	Cookbook   string `json:"cookbook,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
	// OK is nil when the run produced no verdict (spawn failure, interrupt).
	OK *bool `json:"ok,omitempty"`

	EventsTotal        int `json:"eventsTotal"`
	RequirementsTotal  int `json:"requirementsTotal"`
	RequirementsFailed int `json:"requirementsFailed"`
}

// InsertRun archives one finished run. verdict may be nil when validation
// never ran. Re-inserting a run id replaces the stored row.
func (a *DB) InsertRun(rec schema.RunRecordV1, verdict *schema.VerdictV1) error {
	runJSON, err := store.CanonicalJSON(rec)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	var (
		ok          any
		verdictJSON any
	)
	var eventsTotal, reqTotal, reqFailed int
	if verdict != nil {
		b, err := store.CanonicalJSON(verdict)
		if err != nil {
			return fmt.Errorf("encode verdict: %w", err)
		}
		verdictJSON = string(b)
		ok = boolToInt(verdict.OK)
		eventsTotal = verdict.EventsTotal
		reqTotal = verdict.RequirementsTotal
		reqFailed = verdict.RequirementsFailed
	}

	query := `
	INSERT OR REPLACE INTO runs (
		run_id, cookbook, started_at, finished_at, ok,
		events_total, requirements_total, requirements_failed,
		run_json, verdict_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = a.db.Exec(query,
		rec.RunID, rec.Cookbook, rec.StartedAt, rec.FinishedAt, ok,
		eventsTotal, reqTotal, reqFailed,
		string(runJSON), verdictJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns archived runs newest first. cookbook filters when
// non-empty; limit <= 0 means no limit.
func (a *DB) ListRuns(cookbook string, limit int) ([]Row, error) {
	query := `
	SELECT run_id, cookbook, started_at, finished_at, ok,
	       events_total, requirements_total, requirements_failed
	FROM runs`
	args := []any{}
	if cookbook != "" {
		query += " WHERE cookbook = ?"
		args = append(args, cookbook)
	}
	query += " ORDER BY started_at DESC, run_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r        Row
			cb       sql.NullString
			finished sql.NullString
			ok       sql.NullBool
		)
		if err := rows.Scan(&r.RunID, &cb, &r.StartedAt, &finished, &ok,
			&r.EventsTotal, &r.RequirementsTotal, &r.RequirementsFailed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Cookbook = cb.String
		r.FinishedAt = finished.String
		if ok.Valid {
			v := ok.Bool
			r.OK = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// GetRun returns the stored run record and verdict for one run id. The bool
// is false when the id is not archived.
func (a *DB) GetRun(runID string) (schema.RunRecordV1, *schema.VerdictV1, bool, error) {
	var (
		runJSON     string
		verdictJSON sql.NullString
	)
	err := a.db.QueryRow(`SELECT run_json, verdict_json FROM runs WHERE run_id = ?`, runID).
		Scan(&runJSON, &verdictJSON)
	if err == sql.ErrNoRows {
		return schema.RunRecordV1{}, nil, false, nil
	}
	if err != nil {
		return schema.RunRecordV1{}, nil, false, fmt.Errorf("get run: %w", err)
	}

	var rec schema.RunRecordV1
	if err := json.Unmarshal([]byte(runJSON), &rec); err != nil {
		return schema.RunRecordV1{}, nil, false, fmt.Errorf("decode archived run record: %w", err)
	}
	var verdict *schema.VerdictV1
	if verdictJSON.Valid && verdictJSON.String != "" {
		var v schema.VerdictV1
		if err := json.Unmarshal([]byte(verdictJSON.String), &v); err != nil {
			return schema.RunRecordV1{}, nil, false, fmt.Errorf("decode archived verdict: %w", err)
		}
		verdict = &v
	}
	return rec, verdict, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
