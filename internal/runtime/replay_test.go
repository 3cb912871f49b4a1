package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/hub"
	"github.com/agentrt/runtime/internal/ids"
)

func TestEventStoreReplayerUnknownSessionReturnsEmpty(t *testing.T) {
	store := eventstore.NewMemoryStore()
	replayer := NewEventStoreReplayer(store)

	envs, err := replayer.ReplaySince(context.Background(), ids.NewSessionID(), 0)
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestEventStoreReplayerConvertsMessageAndMetadataEvents(t *testing.T) {
	store := eventstore.NewMemoryStore()
	session := ids.NewSessionID()

	msg := userMsg("hello")
	appended, err := eventstore.NewMessageAppended(msg)
	require.NoError(t, err)

	require.NoError(t, store.Append(context.Background(), session, 0,
		eventstore.Event{
			SessionID:      session,
			Type:           eventstore.EventSessionCreated,
			SessionCreated: &eventstore.SessionCreatedPayload{DefaultModel: "claude-sonnet-4-5"},
		},
		eventstore.Event{
			SessionID:       session,
			Type:            eventstore.EventMessageAppended,
			MessageAppended: appended,
		},
		eventstore.Event{
			SessionID:             session,
			Type:                  eventstore.EventActiveMessageChanged,
			ActiveMessageChanged:  &eventstore.ActiveMessageChangedPayload{MessageID: msg.ID},
		},
		eventstore.Event{
			SessionID:              session,
			Type:                   eventstore.EventSessionMetadataUpdated,
			SessionMetadataUpdated: &eventstore.SessionMetadataUpdatedPayload{Metadata: map[string]string{"title": "a chat"}},
		},
	))

	replayer := NewEventStoreReplayer(store)
	envs, err := replayer.ReplaySince(context.Background(), session, 0)
	require.NoError(t, err)

	// session_created never gets an envelope of its own.
	var kinds []hub.EventKind
	for _, e := range envs {
		kinds = append(kinds, e.Event.Kind)
	}
	assert.Equal(t, []hub.EventKind{hub.KindMessageAdded, hub.KindActiveMessageIDChanged, hub.KindTitleGenerated}, kinds)

	require.Equal(t, msg.ID, envs[0].Event.MessageAdded.Message.ID)
	assert.Equal(t, "claude-sonnet-4-5", envs[0].Event.MessageAdded.Model)
	assert.Equal(t, msg.ID, envs[1].Event.ActiveMessageChanged.MessageID)
	assert.Equal(t, "a chat", envs[2].Event.TitleGenerated.Title)
}
