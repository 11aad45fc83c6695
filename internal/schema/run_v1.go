package schema

// RunRecordV1 is written to: <outRoot>/runs/<runId>/run.json
type RunRecordV1 struct {
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"runId"`
	Cookbook      string `json:"cookbook,omitempty"`
	StartedAt     string `json:"startedAt"` // RFC3339 UTC
	FinishedAt    string `json:"finishedAt,omitempty"`

	SensorCommand []string `json:"sensorCommand"`
	AppCommand    []string `json:"appCommand"`
	EventsPath    string   `json:"eventsPath"`
	ExpectPath    string   `json:"expectPath,omitempty"`

	AppExitCode   *int   `json:"appExitCode,omitempty"`
	AppDurationMs int64  `json:"appDurationMs,omitempty"`
	AppOutPreview string `json:"appOutPreview,omitempty"` // bounded
	AppErrPreview string `json:"appErrPreview,omitempty"` // bounded

	// WaitOutcome is settled|timeout; WaitMs is the time spent waiting.
	WaitOutcome string `json:"waitOutcome,omitempty"`
	WaitMs      int64  `json:"waitMs,omitempty"`
	// SensorStop is graceful|killed|spawn_failed.
	SensorStop string `json:"sensorStop,omitempty"`

	// OK mirrors the verdict when validation ran.
	OK *bool `json:"ok,omitempty"`
}
