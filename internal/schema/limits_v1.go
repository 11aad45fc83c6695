package schema

// v1 size limits used across writers + readers.
const (
	// EventLineMaxBytesV1 bounds a single capture line during scans.
	EventLineMaxBytesV1 = 1024 * 1024

	// AppPreviewMaxBytesV1 bounds the stdout/stderr previews kept in run.json.
	AppPreviewMaxBytesV1 = 16 * 1024

	// MismatchListMaxV1 bounds the per-candidate mismatch detail in a verdict.
	MismatchListMaxV1 = 5
)
