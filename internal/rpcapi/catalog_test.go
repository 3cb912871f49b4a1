package rpcapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/ids"
)

func TestCatalogGetUnknownSessionReadsThroughToStore(t *testing.T) {
	store := eventstore.NewMemoryStore()
	session := ids.NewSessionID()
	require.NoError(t, store.Append(context.Background(), session, 0, eventstore.Event{
		SessionID:      session,
		Timestamp:      100,
		Type:           eventstore.EventSessionCreated,
		SessionCreated: &eventstore.SessionCreatedPayload{DefaultModel: "claude-sonnet-4-5"},
	}))

	c := newCatalog(store)
	row, err := c.get(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, session, row.ID)
	assert.Equal(t, "claude-sonnet-4-5", row.DefaultModel)
	assert.Equal(t, int64(100), row.CreatedAt)
}

func TestCatalogGetMissingSessionReturnsNotFound(t *testing.T) {
	store := eventstore.NewMemoryStore()
	c := newCatalog(store)
	_, err := c.get(context.Background(), ids.NewSessionID())
	assert.ErrorIs(t, err, eventstore.ErrNotFound)
}

func TestCatalogPutThenGetServesFromCache(t *testing.T) {
	store := eventstore.NewMemoryStore()
	c := newCatalog(store)
	session := ids.NewSessionID()
	c.put(SessionSummary{ID: session, DefaultModel: "claude-sonnet-4-5", CreatedAt: 1, UpdatedAt: 1})

	row, err := c.get(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", row.DefaultModel)
}

func TestCatalogRemoveDropsCachedRow(t *testing.T) {
	store := eventstore.NewMemoryStore()
	c := newCatalog(store)
	session := ids.NewSessionID()
	c.put(SessionSummary{ID: session})
	c.remove(session)

	_, err := c.get(context.Background(), session)
	assert.ErrorIs(t, err, eventstore.ErrNotFound)
}

func TestCatalogListRefreshesUnseenSessionsFromStore(t *testing.T) {
	store := eventstore.NewMemoryStore()
	session := ids.NewSessionID()
	require.NoError(t, store.Append(context.Background(), session, 0, eventstore.Event{
		SessionID:      session,
		Timestamp:      5,
		Type:           eventstore.EventSessionCreated,
		SessionCreated: &eventstore.SessionCreatedPayload{DefaultModel: "claude-sonnet-4-5"},
	}))

	c := newCatalog(store)
	rows, err := c.list(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, session, rows[0].ID)
}
