package eventstore

import (
	"context"
	"testing"

	"github.com/agentrt/runtime/internal/convo"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsSequentialSeq(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := ids.NewSessionID()

	err := store.Append(ctx, session, 0,
		Event{Timestamp: 1, Type: EventSessionCreated, SessionCreated: &SessionCreatedPayload{DefaultModel: "gpt-test"}},
	)
	require.NoError(t, err)

	msg := convo.NewUserMessage(ids.NewMessageID(), nil, 2, convo.UserContent{Text: &convo.TextContent{Text: "hi"}})
	payload, err := NewMessageAppended(msg)
	require.NoError(t, err)
	err = store.Append(ctx, session, 1, Event{Timestamp: 2, Type: EventMessageAppended, MessageAppended: payload})
	require.NoError(t, err)

	events, err := store.Load(ctx, session)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, uint64(2), events[1].Seq)

	seq, err := store.LatestSeq(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}

func TestAppendRejectsStaleExpectedSeq(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := ids.NewSessionID()

	require.NoError(t, store.Append(ctx, session, 0, Event{Type: EventSessionCreated, SessionCreated: &SessionCreatedPayload{}}))
	require.NoError(t, store.Append(ctx, session, 1, Event{Type: EventSessionMetadataUpdated, SessionMetadataUpdated: &SessionMetadataUpdatedPayload{Metadata: map[string]string{}}}))
	// The log's tip is now 2; expectedSeq 1 is stale.
	err := store.Append(ctx, session, 1, Event{Type: EventSessionMetadataUpdated, SessionMetadataUpdated: &SessionMetadataUpdatedPayload{Metadata: map[string]string{}}})
	assert.ErrorIs(t, err, ErrSeqConflict)
}

func TestLoadSinceReturnsOnlyNewerEvents(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := ids.NewSessionID()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, session, uint64(i), Event{Type: EventSessionMetadataUpdated, SessionMetadataUpdated: &SessionMetadataUpdatedPayload{Metadata: map[string]string{}}}))
	}

	events, err := store.LoadSince(ctx, session, 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(4), events[0].Seq)
	assert.Equal(t, uint64(5), events[1].Seq)
}

func TestDeleteRemovesLog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := ids.NewSessionID()
	require.NoError(t, store.Append(ctx, session, 0, Event{Type: EventSessionCreated, SessionCreated: &SessionCreatedPayload{}}))

	require.NoError(t, store.Delete(ctx, session))
	events, err := store.Load(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, events)
}
