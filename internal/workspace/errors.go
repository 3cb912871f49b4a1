package workspace

import "errors"

// Sentinel errors workspace Executors wrap their failures in, so callers
// (internal/runtime's classifyToolError) can map them onto the §6.4 error
// taxonomy via errors.Is instead of string matching.
var (
	ErrInvalidParams = errors.New("workspace: invalid tool parameters")
	ErrIO            = errors.New("workspace: io error")
	ErrHTTP          = errors.New("workspace: http error")
	ErrRegex         = errors.New("workspace: regex error")
	ErrMcpConnection = errors.New("workspace: mcp connection failed")
)
