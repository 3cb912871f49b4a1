package eventstore

import (
	"context"

	"github.com/agentrt/runtime/internal/ids"
)

// Store is the append-only per-session event log contract both backends
// satisfy.
type Store interface {
	// Append adds events to a session's log, assigning each the next
	// sequence number after the log's current tip. expectedSeq, if
	// nonzero, must equal the log's current latest seq or the call fails
	// with ErrSeqConflict (a cheap optimistic-concurrency guard; the
	// single-writer-per-session discipline means this should never
	// trigger in normal operation).
	Append(ctx context.Context, session ids.SessionID, expectedSeq uint64, events ...Event) error

	// Load returns every event for a session in ascending seq order.
	Load(ctx context.Context, session ids.SessionID) ([]Event, error)

	// LoadSince returns events with seq > sinceSeq, in ascending order —
	// the replay half of the Subscription Hub's since_seq contract.
	LoadSince(ctx context.Context, session ids.SessionID, sinceSeq uint64) ([]Event, error)

	// LatestSeq returns the current tip sequence number for a session,
	// or 0 if the session has no events yet.
	LatestSeq(ctx context.Context, session ids.SessionID) (uint64, error)

	// Delete removes a session's entire event log (§3.6: deletion
	// removes the session's event log).
	Delete(ctx context.Context, session ids.SessionID) error

	// ListSessions returns every session id with a non-empty log, for
	// cold-start recovery.
	ListSessions(ctx context.Context) ([]ids.SessionID, error)
}
