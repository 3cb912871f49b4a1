package workspace

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/mcp"
)

// mcpExecutor dispatches a tool call to whichever connected MCP server
// advertised it, wired directly against internal/mcp.Client (no eino
// wrapping, unlike the teacher's tool_wrapper.go).
type mcpExecutor struct {
	client *mcp.Client
}

func (e mcpExecutor) Execute(ctx context.Context, call convo.ToolCall) (convo.ToolResult, error) {
	raw, err := e.client.ExecuteTool(ctx, call.Name, call.Parameters)
	if err != nil {
		return convo.ToolResult{}, fmt.Errorf("%w: %v", ErrMcpConnection, err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		payload = map[string]any{"text": raw}
	}
	return convo.ToolResult{
		Kind:     convo.ResultExternal,
		External: &convo.ExternalResult{ToolName: call.Name, Payload: payload},
	}, nil
}

// mcpTools returns every tool currently advertised by client's connected
// servers, as workspace ToolSchema + Executor pairs.
func mcpTools(client *mcp.Client) ([]ToolSchema, map[string]toolExecutorPair) {
	if client == nil {
		return nil, nil
	}
	exec := mcpExecutor{client: client}
	var schemas []ToolSchema
	byName := make(map[string]toolExecutorPair)
	for _, t := range client.Tools() {
		schemas = append(schemas, ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
		byName[t.Name] = toolExecutorPair{schema: ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.InputSchema}, exec: exec}
	}
	return schemas, byName
}

type toolExecutorPair struct {
	schema ToolSchema
	exec   mcpExecutor
}
