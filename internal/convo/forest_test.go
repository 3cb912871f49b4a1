package convo

import (
	"testing"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivePathOrdering(t *testing.T) {
	f := NewForest()

	u1 := ids.NewMessageID()
	f.Add(NewUserMessage(u1, nil, 1, UserContent{Text: &TextContent{Text: "hi"}}))

	a1 := ids.NewMessageID()
	f.Add(NewAssistantMessage(a1, &u1, 2, AssistantContent{Text: &TextContent{Text: "hello"}}))

	path := f.ActivePath()
	require.Len(t, path, 2)
	assert.Equal(t, u1, path[0].ID)
	assert.Equal(t, a1, path[1].ID)
}

func TestPendingToolCallsTracksUnresolvedCalls(t *testing.T) {
	f := NewForest()

	u1 := ids.NewMessageID()
	f.Add(NewUserMessage(u1, nil, 1, UserContent{Text: &TextContent{Text: "read file.go"}}))

	callID := ids.ToolCallIDFromModel("toolu_01")
	a1 := ids.NewMessageID()
	f.Add(NewAssistantMessage(a1, &u1, 2, AssistantContent{
		ToolCall: &ToolCall{ID: callID, Name: "read", Parameters: []byte(`{"path":"file.go"}`)},
	}))

	pending := f.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, callID, pending[0].ID)

	t1 := ids.NewMessageID()
	f.Add(NewToolMessage(t1, &a1, 3, callID, ToolResult{Kind: ResultFileContent, FileContent: &FileContentResult{Path: "file.go", Content: "package main"}}))

	assert.Empty(t, f.PendingToolCalls())
}

func TestValidateRejectsUnknownToolUseID(t *testing.T) {
	f := NewForest()
	u1 := ids.NewMessageID()
	f.Add(NewUserMessage(u1, nil, 1, UserContent{Text: &TextContent{Text: "go"}}))

	bogus := ids.ToolCallIDFromModel("toolu_never_issued")
	t1 := ids.NewMessageID()
	msg := NewToolMessage(t1, &u1, 2, bogus, ToolResult{Kind: ResultError, Error: &ErrorResult{Message: "boom"}})

	err := msg.Validate(f.HasToolCall)
	assert.Error(t, err)
}

func TestRenderEditProducesDiffText(t *testing.T) {
	res := RenderEdit("a.go", "package a\n", "package b\n")
	assert.NotEmpty(t, res.Diff)
	assert.Equal(t, "a.go", res.Path)
}
