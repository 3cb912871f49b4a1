package eventstore

import (
	"context"
	"testing"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceRebuildsForestAndToolStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := ids.NewSessionID()

	u1 := ids.NewMessageID()
	userMsg := convo.NewUserMessage(u1, nil, 1, convo.UserContent{Text: &convo.TextContent{Text: "go"}})
	userPayload, err := NewMessageAppended(userMsg)
	require.NoError(t, err)

	callID := ids.ToolCallIDFromModel("toolu_1")
	a1 := ids.NewMessageID()
	assistantMsg := convo.NewAssistantMessage(a1, &u1, 2, convo.AssistantContent{
		ToolCall: &convo.ToolCall{ID: callID, Name: "bash", Parameters: []byte(`{"command":"ls"}`)},
	})
	assistantPayload, err := NewMessageAppended(assistantMsg)
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, session, 0,
		Event{Timestamp: 0, Type: EventSessionCreated, SessionCreated: &SessionCreatedPayload{DefaultModel: "m1"}},
		Event{Timestamp: 1, Type: EventMessageAppended, MessageAppended: userPayload},
		Event{Timestamp: 2, Type: EventMessageAppended, MessageAppended: assistantPayload},
	))

	events, err := store.Load(ctx, session)
	require.NoError(t, err)

	snap, err := Reduce(events)
	require.NoError(t, err)

	assert.Equal(t, "m1", snap.DefaultModel)
	assert.Equal(t, a1, snap.ActiveMessageID)
	assert.Equal(t, ToolCallPendingApproval, snap.ToolCallStatus[callID])
	assert.Len(t, snap.Forest.ActivePath(), 2)
	assert.Equal(t, uint64(3), snap.LatestSeq)
}

func TestReduceMarksToolCallCompletedOnResult(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := ids.NewSessionID()

	callID := ids.ToolCallIDFromModel("toolu_1")
	a1 := ids.NewMessageID()
	assistantMsg := convo.NewAssistantMessage(a1, nil, 1, convo.AssistantContent{
		ToolCall: &convo.ToolCall{ID: callID, Name: "bash", Parameters: []byte(`{}`)},
	})
	assistantPayload, err := NewMessageAppended(assistantMsg)
	require.NoError(t, err)

	t1 := ids.NewMessageID()
	toolMsg := convo.NewToolMessage(t1, &a1, 2, callID, convo.ToolResult{Kind: convo.ResultBash, Bash: &convo.BashResult{ExitCode: 0}})
	toolPayload, err := NewMessageAppended(toolMsg)
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, session, 0,
		Event{Type: EventMessageAppended, MessageAppended: assistantPayload},
		Event{Type: EventMessageAppended, MessageAppended: toolPayload},
	))

	events, err := store.Load(ctx, session)
	require.NoError(t, err)
	snap, err := Reduce(events)
	require.NoError(t, err)

	assert.Equal(t, ToolCallCompleted, snap.ToolCallStatus[callID])
}
