package rpcapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/ids"
)

// SessionSummary is the §6.2 session catalog row: enough to list and
// sort sessions without replaying their full event log.
type SessionSummary struct {
	ID           ids.SessionID     `json:"id"`
	CreatedAt    int64             `json:"createdAt"`
	UpdatedAt    int64             `json:"updatedAt"`
	DefaultModel string            `json:"defaultModel"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// catalog derives §6.2's session catalog from the event store: no
// separate table, since every field it lists (created_at, updated_at,
// last_model, metadata) is already present in a session's own log and
// the catalog is only a cache of values Reduce can recompute.
type catalog struct {
	mu    sync.RWMutex
	store eventstore.Store
	rows  map[ids.SessionID]SessionSummary
}

func newCatalog(store eventstore.Store) *catalog {
	return &catalog{store: store, rows: make(map[ids.SessionID]SessionSummary)}
}

// put records or refreshes one session's summary row. createSession and
// get call it; later event appends do not refresh a cached row.
func (c *catalog) put(row SessionSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[row.ID] = row
}

func (c *catalog) remove(id ids.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, id)
}

// list returns every known summary, refreshing from the store any session
// this process hasn't seen yet (e.g. after a cold restart).
func (c *catalog) list(ctx context.Context) ([]SessionSummary, error) {
	sessionIDs, err := c.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("rpcapi: listing sessions: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SessionSummary, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if row, ok := c.rows[id]; ok {
			out = append(out, row)
			continue
		}
		row, err := summaryFromStore(ctx, c.store, id)
		if err != nil {
			continue
		}
		c.rows[id] = row
		out = append(out, row)
	}
	return out, nil
}

func (c *catalog) get(ctx context.Context, id ids.SessionID) (SessionSummary, error) {
	c.mu.RLock()
	row, ok := c.rows[id]
	c.mu.RUnlock()
	if ok {
		return row, nil
	}
	row, err := summaryFromStore(ctx, c.store, id)
	if err != nil {
		return SessionSummary{}, err
	}
	c.put(row)
	return row, nil
}

func summaryFromStore(ctx context.Context, store eventstore.Store, id ids.SessionID) (SessionSummary, error) {
	events, err := store.Load(ctx, id)
	if err != nil {
		return SessionSummary{}, err
	}
	if len(events) == 0 {
		return SessionSummary{}, eventstore.ErrNotFound
	}
	snap, err := eventstore.Reduce(events)
	if err != nil {
		return SessionSummary{}, err
	}
	return SessionSummary{
		ID:           id,
		CreatedAt:    events[0].Timestamp,
		UpdatedAt:    events[len(events)-1].Timestamp,
		DefaultModel: snap.DefaultModel,
		Metadata:     snap.Metadata,
	}, nil
}
