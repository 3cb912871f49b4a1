package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	suspended bool
}

func (f *fakeTask) RequestSuspend(ctx context.Context) error {
	f.suspended = true
	return nil
}

func TestEnsureSpawnsOnceThenReusesTask(t *testing.T) {
	var spawnCount int
	var mu sync.Mutex
	spawn := func(ctx context.Context, session ids.SessionID) (Task, error) {
		mu.Lock()
		spawnCount++
		mu.Unlock()
		return &fakeTask{}, nil
	}
	r := New(spawn)
	session := ids.NewSessionID()

	task1, err := r.Ensure(context.Background(), session)
	require.NoError(t, err)
	task2, err := r.Ensure(context.Background(), session)
	require.NoError(t, err)

	assert.Same(t, task1, task2)
	assert.Equal(t, 1, spawnCount)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestEnsureEnforcesCapacity(t *testing.T) {
	spawn := func(ctx context.Context, session ids.SessionID) (Task, error) {
		return &fakeTask{}, nil
	}
	r := New(spawn, WithMaxConcurrentSessions(1))

	_, err := r.Ensure(context.Background(), ids.NewSessionID())
	require.NoError(t, err)

	_, err = r.Ensure(context.Background(), ids.NewSessionID())
	require.Error(t, err)
	var capErr *CapacityExceeded
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 1, capErr.Current)
	assert.Equal(t, 1, capErr.Max)
}

func TestRemoveDropsSessionFromActiveMap(t *testing.T) {
	spawn := func(ctx context.Context, session ids.SessionID) (Task, error) {
		return &fakeTask{}, nil
	}
	r := New(spawn)
	session := ids.NewSessionID()
	_, err := r.Ensure(context.Background(), session)
	require.NoError(t, err)

	r.Remove(session)
	assert.False(t, r.IsActive(session))
	assert.Equal(t, 0, r.ActiveCount())
}

func TestIdleTimerFiresAfterLastSubscriberLeaves(t *testing.T) {
	spawn := func(ctx context.Context, session ids.SessionID) (Task, error) {
		return &fakeTask{}, nil
	}
	r := New(spawn, WithIdleTimeout(10*time.Millisecond))
	session := ids.NewSessionID()
	_, err := r.Ensure(context.Background(), session)
	require.NoError(t, err)

	suspended := make(chan ids.SessionID, 1)
	r.OnSubscriberJoined(session)
	r.OnSubscriberLeft(session, func(s ids.SessionID) { suspended <- s })

	select {
	case s := <-suspended:
		assert.Equal(t, session, s)
	case <-time.After(time.Second):
		t.Fatal("expected idle timeout to fire")
	}
}

func TestJoinDisarmsIdleTimer(t *testing.T) {
	spawn := func(ctx context.Context, session ids.SessionID) (Task, error) {
		return &fakeTask{}, nil
	}
	r := New(spawn, WithIdleTimeout(20*time.Millisecond))
	session := ids.NewSessionID()
	_, err := r.Ensure(context.Background(), session)
	require.NoError(t, err)

	suspended := make(chan ids.SessionID, 1)
	r.OnSubscriberJoined(session)
	r.OnSubscriberLeft(session, func(s ids.SessionID) { suspended <- s })
	r.OnSubscriberJoined(session)

	select {
	case <-suspended:
		t.Fatal("idle timer should have been disarmed by the rejoin")
	case <-time.After(50 * time.Millisecond):
	}
}
