package eventstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentrt/runtime/internal/ids"
)

// MemoryStore is an in-process event log, one mutex-guarded slice per
// session. It mirrors the teacher's file-backed Storage in spirit (a
// single writer lock per key, read-modify-write under that lock) but
// holds logs in memory rather than as JSON files, and understands
// sequence numbers rather than opaque paths.
type MemoryStore struct {
	mu    sync.RWMutex
	logs  map[ids.SessionID][]Event
}

// NewMemoryStore returns an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[ids.SessionID][]Event)}
}

func (m *MemoryStore) Append(ctx context.Context, session ids.SessionID, expectedSeq uint64, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logs[session]
	var tip uint64
	if len(log) > 0 {
		tip = log[len(log)-1].Seq
	}
	if expectedSeq != 0 && expectedSeq != tip {
		return fmt.Errorf("%w: expected %d, log at %d", ErrSeqConflict, expectedSeq, tip)
	}

	for i := range events {
		tip++
		events[i].SessionID = session
		events[i].Seq = tip
		log = append(log, events[i])
	}
	m.logs[session] = log
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, session ids.SessionID) ([]Event, error) {
	return m.LoadSince(ctx, session, 0)
}

func (m *MemoryStore) LoadSince(ctx context.Context, session ids.SessionID, sinceSeq uint64) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.logs[session]
	if !ok {
		return nil, nil
	}

	out := make([]Event, 0, len(log))
	for _, e := range log {
		if e.Seq > sinceSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) LatestSeq(ctx context.Context, session ids.SessionID) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.logs[session]
	if !ok || len(log) == 0 {
		return 0, nil
	}
	return log[len(log)-1].Seq, nil
}

func (m *MemoryStore) Delete(ctx context.Context, session ids.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, session)
	return nil
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]ids.SessionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ids.SessionID, 0, len(m.logs))
	for id := range m.logs {
		out = append(out, id)
	}
	return out, nil
}
