package runtime

import (
	"errors"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/toolorch"
	"github.com/agentrt/runtime/internal/workspace"
)

// classifyToolError maps a toolorch.Execute error to the §6.4 error
// taxonomy the stepper's ToolFailedInput carries forward into the
// synthesized Tool message.
func classifyToolError(err error) convo.ErrorKind {
	switch {
	case errors.Is(err, toolorch.ErrUnknownTool):
		return convo.ErrorUnknownTool
	case errors.Is(err, toolorch.ErrCancelled):
		return convo.ErrorCancelled
	case errors.Is(err, toolorch.ErrTimeout):
		return convo.ErrorTimeout
	case errors.Is(err, workspace.ErrInvalidParams):
		return convo.ErrorInvalidParams
	case errors.Is(err, workspace.ErrIO):
		return convo.ErrorIO
	case errors.Is(err, workspace.ErrHTTP):
		return convo.ErrorHTTP
	case errors.Is(err, workspace.ErrRegex):
		return convo.ErrorRegex
	case errors.Is(err, workspace.ErrMcpConnection):
		return convo.ErrorMcpConnectionFailed
	default:
		return convo.ErrorExecution
	}
}
