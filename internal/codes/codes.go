// Package codes is the single authority for SLAB_* diagnostic codes.
// Error codes mark infrastructure-level failures (exit 2 territory);
// warning codes annotate degraded-but-continuing behavior.
package codes

const (
	Usage              = "SLAB_E_USAGE"
	IO                 = "SLAB_E_IO"
	InvalidJSON        = "SLAB_E_INVALID_JSON"
	InvalidExpectation = "SLAB_E_INVALID_EXPECTATION"
	Config             = "SLAB_E_CONFIG"
	EnvMissing         = "SLAB_E_ENV_MISSING"
	Spawn              = "SLAB_E_SPAWN"
	Timeout            = "SLAB_E_TIMEOUT"
	LockTimeout        = "SLAB_E_LOCK_TIMEOUT"
	Archive            = "SLAB_E_ARCHIVE"
	NotFound           = "SLAB_E_NOT_FOUND"
)

const (
	WarnMalformedLine = "SLAB_W_MALFORMED_LINE"
	WarnLineTooLong   = "SLAB_W_LINE_TOO_LONG"
	WarnEmptyCapture  = "SLAB_W_EMPTY_CAPTURE"
	WarnArchiveFailed = "SLAB_W_ARCHIVE_FAILED"
)
