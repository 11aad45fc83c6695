package schema

// CaptureSummaryV1 is the aggregation a single bounded scan of a capture file
// produces. Token sums only count events whose usage fields resolve
// numerically.
type CaptureSummaryV1 struct {
	SchemaVersion int    `json:"schemaVersion"`
	EventsPath    string `json:"eventsPath"`
	EventsTotal   int    `json:"eventsTotal"`

	EventsByType map[string]int64 `json:"eventsByType,omitempty"`
	Providers    map[string]int64 `json:"providers,omitempty"`
	Models       map[string]int64 `json:"models,omitempty"`

	TotalTokens      int64 `json:"totalTokens"`
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`

	SuccessTotal   int64 `json:"successTotal"`
	FailureTotal   int64 `json:"failureTotal"`
	StreamingTotal int64 `json:"streamingTotal"`

	FirstTimestamp string `json:"firstTimestamp,omitempty"`
	LastTimestamp  string `json:"lastTimestamp,omitempty"`

	Warnings []FindingV1 `json:"warnings,omitempty"`
}
