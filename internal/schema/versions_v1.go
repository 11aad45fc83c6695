package schema

// Artifact schema versions are per-artifact on purpose, even if they happen to
// be the same number today. This lets us evolve (for example) verdict.json
// without forcing a breaking change to run.json or summary envelopes.
const (
	VerdictSchemaV1 = 1
	RunSchemaV1     = 1
	SummarySchemaV1 = 1
)
