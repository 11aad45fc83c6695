package cli

import "github.com/sensorlab-io/sensorlab/internal/codes"

// Codes the CLI prints directly. Errors raised deeper in the stack carry
// their own code and format it through CliError.
const (
	codeUsage       = codes.Usage
	codeIO          = codes.IO
	codeConfig      = codes.Config
	codeLockTimeout = codes.LockTimeout
	codeArchive     = codes.Archive
	codeNotFound    = codes.NotFound
)
