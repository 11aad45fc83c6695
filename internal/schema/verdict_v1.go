package schema

// VerdictV1 is the machine form of one validation run. The harness writes it
// to: <outRoot>/runs/<runId>/verdict.json; `validate --json` prints it.
type VerdictV1 struct {
	SchemaVersion int    `json:"schemaVersion"`
	OK            bool   `json:"ok"`
	EventsPath    string `json:"eventsPath"`
	ExpectPath    string `json:"expectPath"`
	CheckedAt     string `json:"checkedAt"` // RFC3339Nano UTC

	EventsTotal int `json:"eventsTotal"`
	// MinimumEvents is nil when the document sets no lower bound.
	MinimumEvents    *int `json:"minimumEvents,omitempty"`
	MinimumSatisfied bool `json:"minimumSatisfied"`

	RequirementsTotal  int                   `json:"requirementsTotal"`
	RequirementsFailed int                   `json:"requirementsFailed"`
	Requirements       []RequirementResultV1 `json:"requirements,omitempty"`

	Warnings []FindingV1 `json:"warnings,omitempty"`
}

// Reason values for an unsatisfied requirement.
const (
	ReasonNoEventsOfType   = "no_events_of_type"
	ReasonFieldsMismatched = "fields_mismatched"
)

type RequirementResultV1 struct {
	Index     int    `json:"index"` // 1-based position in the expectation document
	EventType string `json:"eventType"`
	Satisfied bool   `json:"satisfied"`
	// MatchedEvent indexes the valid event sequence (0-based) when satisfied.
	MatchedEvent *int   `json:"matchedEvent,omitempty"`
	MatchedLine  int    `json:"matchedLine,omitempty"` // 1-based line in the capture file
	Reason       string `json:"reason,omitempty"`
	// ClosestCandidate is set when events of the type existed but none matched.
	ClosestCandidate *CandidateV1 `json:"closestCandidate,omitempty"`
}

type CandidateV1 struct {
	Event      int          `json:"event"` // index into the valid event sequence
	Line       int          `json:"line,omitempty"`
	Mismatches []MismatchV1 `json:"mismatches"`
}

// MismatchV1 keeps expected/actual unconditionally: false and zero are
// legitimate values a reader must be able to see.
type MismatchV1 struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
}

type FindingV1 struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
}
