package hub

import (
	"context"
	"testing"
	"time"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplayer struct {
	events []Envelope
}

func (f *fakeReplayer) ReplaySince(ctx context.Context, session ids.SessionID, sinceSeq uint64) ([]Envelope, error) {
	var out []Envelope
	for _, e := range f.events {
		if e.Seq > sinceSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestSubscribeReplaysThenDeliversLive(t *testing.T) {
	h := New(nil)
	session := ids.NewSessionID()
	replayer := &fakeReplayer{events: []Envelope{
		{SessionID: session, Seq: 1, Event: Event{Kind: KindMessageAdded}},
		{SessionID: session, Seq: 2, Event: Event{Kind: KindMessageAdded}},
	}}

	data, _, unsub, err := h.Subscribe(context.Background(), session, 0, replayer)
	require.NoError(t, err)
	defer unsub()

	first := <-data
	second := <-data
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)

	h.Publish(session, Envelope{SessionID: session, Seq: 3, Event: Event{Kind: KindProcessingCompleted}})
	third := <-data
	assert.Equal(t, uint64(3), third.Seq)
}

func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	h := New(nil)
	session := ids.NewSessionID()

	data, errs, unsub, err := h.Subscribe(context.Background(), session, 0, nil)
	require.NoError(t, err)
	defer unsub()

	for i := 0; i < SubscriberBufferSize+10; i++ {
		h.Publish(session, Envelope{SessionID: session, Seq: uint64(i + 1)})
	}

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrSlowSubscriber)
	case <-time.After(time.Second):
		t.Fatal("expected slow-subscriber error")
	}

	_, dataOpen := <-data
	_ = dataOpen
	assert.Equal(t, 0, h.SubscriberCount(session))
}

func TestOnIdleFiresWhenLastSubscriberLeaves(t *testing.T) {
	session := ids.NewSessionID()
	idleCh := make(chan ids.SessionID, 1)
	h := New(func(s ids.SessionID) { idleCh <- s })

	_, _, unsub, err := h.Subscribe(context.Background(), session, 0, nil)
	require.NoError(t, err)

	unsub()
	select {
	case s := <-idleCh:
		assert.Equal(t, session, s)
	case <-time.After(time.Second):
		t.Fatal("expected onIdle callback")
	}
}
