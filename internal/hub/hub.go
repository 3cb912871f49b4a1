package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/oklog/ulid/v2"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/logging"
)

// SubscriberBufferSize bounds how far a subscriber may lag before it is
// dropped (§4.6: "a slow subscriber that falls too far behind is
// dropped with a transport-level error").
const SubscriberBufferSize = 256

// ErrSlowSubscriber is delivered on a subscription's error channel (and
// the data channel is then closed) when its buffer fills.
var ErrSlowSubscriber = fmt.Errorf("hub: subscriber buffer exceeded, dropped")

// Replayer fetches persisted events for a session with seq greater than
// sinceSeq — Subscribe calls this before switching a subscription to
// live delivery. internal/eventstore's Store satisfies this once wrapped
// to return Envelopes instead of eventstore.Events.
type Replayer interface {
	ReplaySince(ctx context.Context, session ids.SessionID, sinceSeq uint64) ([]Envelope, error)
}

// Hub is the per-process Subscription Hub. Each session gets its own
// watermill gochannel topic (kept for parity with the teacher's bus and
// as a seam for a distributed backend later) plus a set of directly
// tracked subscriber channels, since gochannel's own subscription model
// doesn't give us per-subscriber drop-on-full semantics for free.
type Hub struct {
	mu       sync.Mutex
	sessions map[ids.SessionID]*sessionTopic
	onIdle   func(ids.SessionID)
}

type sessionTopic struct {
	pubsub      *gochannel.GoChannel
	subscribers map[uint64]chan Envelope
	errs        map[uint64]chan error
	nextID      uint64
	lastSeq     uint64
}

// New returns an empty Hub. onIdle, if non-nil, is invoked whenever a
// session's subscriber count drops to zero — the runtime scheduler uses
// this to arm the session's idle-suspend timer (§4.4).
func New(onIdle func(ids.SessionID)) *Hub {
	return &Hub{sessions: make(map[ids.SessionID]*sessionTopic), onIdle: onIdle}
}

func (h *Hub) topicFor(session ids.SessionID) *sessionTopic {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.sessions[session]
	if !ok {
		t = &sessionTopic{
			pubsub: gochannel.NewGoChannel(
				gochannel.Config{OutputChannelBuffer: int64(SubscriberBufferSize), Persistent: false},
				watermill.NopLogger{},
			),
			subscribers: make(map[uint64]chan Envelope),
			errs:        make(map[uint64]chan error),
		}
		h.sessions[session] = t
	}
	return t
}

// Publish fans a live envelope out to every current subscriber of a
// session, dropping any subscriber whose buffer is full.
func (h *Hub) Publish(session ids.SessionID, env Envelope) {
	if env.ID == "" {
		env.ID = ulid.Make().String()
	}
	h.mu.Lock()
	t, ok := h.sessions[session]
	if !ok {
		h.mu.Unlock()
		return
	}
	t.lastSeq = env.Seq
	subs := make(map[uint64]chan Envelope, len(t.subscribers))
	for id, ch := range t.subscribers {
		subs[id] = ch
	}
	h.mu.Unlock()

	for id, ch := range subs {
		select {
		case ch <- env:
		default:
			h.drop(session, id, ErrSlowSubscriber)
		}
	}
}

// Subscribe opens a subscription starting at sinceSeq (0 means "from the
// beginning, or live-only if the caller has no prior history"). Past
// events are replayed via replayer before any live event is delivered;
// replay and live delivery never interleave out of seq order because the
// subscriber channel is registered before replay begins, and replay
// always rewinds to events with seq <= the registration point handled by
// the caller's eventstore query ordering.
func (h *Hub) Subscribe(ctx context.Context, session ids.SessionID, sinceSeq uint64, replayer Replayer) (<-chan Envelope, <-chan error, func(), error) {
	t := h.topicFor(session)

	h.mu.Lock()
	id := t.nextID
	t.nextID++
	dataCh := make(chan Envelope, SubscriberBufferSize)
	errCh := make(chan error, 1)
	t.subscribers[id] = dataCh
	t.errs[id] = errCh
	h.mu.Unlock()

	unsubscribe := func() { h.unsubscribe(session, id) }

	if replayer != nil {
		past, err := replayer.ReplaySince(ctx, session, sinceSeq)
		if err != nil {
			unsubscribe()
			return nil, nil, nil, fmt.Errorf("replay since %d: %w", sinceSeq, err)
		}
		for _, env := range past {
			select {
			case dataCh <- env:
			case <-ctx.Done():
				unsubscribe()
				return nil, nil, nil, ctx.Err()
			}
		}
	}

	return dataCh, errCh, unsubscribe, nil
}

func (h *Hub) drop(session ids.SessionID, id uint64, reason error) {
	h.mu.Lock()
	t, ok := h.sessions[session]
	if !ok {
		h.mu.Unlock()
		return
	}
	errCh, hasErr := t.errs[id]
	dataCh, hasData := t.subscribers[id]
	delete(t.subscribers, id)
	delete(t.errs, id)
	remaining := len(t.subscribers)
	h.mu.Unlock()

	if hasErr {
		select {
		case errCh <- reason:
		default:
		}
		close(errCh)
	}
	if hasData {
		close(dataCh)
	}
	logging.Logger.Warn().Str("session", session.String()).Msg("hub: dropped slow subscriber")

	if remaining == 0 && h.onIdle != nil {
		h.onIdle(session)
	}
}

func (h *Hub) unsubscribe(session ids.SessionID, id uint64) {
	h.mu.Lock()
	t, ok := h.sessions[session]
	if !ok {
		h.mu.Unlock()
		return
	}
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
	}
	delete(t.subscribers, id)
	delete(t.errs, id)
	remaining := len(t.subscribers)
	h.mu.Unlock()

	if remaining == 0 && h.onIdle != nil {
		h.onIdle(session)
	}
}

// SubscriberCount reports how many live subscribers a session currently
// has.
func (h *Hub) SubscriberCount(session ids.SessionID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.sessions[session]
	if !ok {
		return 0
	}
	return len(t.subscribers)
}

// Close tears down a session's topic entirely, used when a session is
// deleted.
func (h *Hub) Close(session ids.SessionID) {
	h.mu.Lock()
	t, ok := h.sessions[session]
	if ok {
		delete(h.sessions, session)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	for _, ch := range t.subscribers {
		close(ch)
	}
	_ = t.pubsub.Close()
}
