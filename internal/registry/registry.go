// Package registry implements the process-wide Session Registry: the map
// of active session tasks, their subscriber counts, idle-suspend timers,
// and max_concurrent_sessions capacity enforcement. It is the only
// process-wide mutable state in the runtime (spec §9's "Global state"
// note) — every other package operates on data scoped to one session.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/logging"
)

// DefaultIdleTimeout is how long a session is kept resident after its
// last subscriber disconnects before the task is asked to suspend.
const DefaultIdleTimeout = 30 * time.Minute

// Task is the minimal surface the registry needs from a running session
// task (internal/runtime.Scheduler implements this). Keeping the
// interface here, not a concrete *runtime.Scheduler, avoids a dependency
// cycle between internal/registry and internal/runtime: the runtime
// package depends on the registry to register itself, not the reverse.
type Task interface {
	// RequestSuspend asks the task to persist any final state and stop.
	// It must not block past the task's own shutdown sequence.
	RequestSuspend(ctx context.Context) error
}

// Spawner creates a new Task for a session, either fresh or resumed from
// the event store. The registry never constructs tasks itself; it only
// tracks them, since construction needs the full set of runtime
// dependencies (stepper clock, tool orchestrator, LLM adapter, hub).
type Spawner func(ctx context.Context, session ids.SessionID) (Task, error)

// CapacityExceeded is returned by Ensure when max_concurrent_sessions
// would be exceeded by spawning a new task.
type CapacityExceeded struct {
	Current int
	Max     int
}

func (e *CapacityExceeded) Error() string {
	return fmt.Sprintf("registry: capacity exceeded (%d/%d active sessions)", e.Current, e.Max)
}

// entry tracks one active session's task plus its idle-timer state.
type entry struct {
	task        Task
	idleTimer   *time.Timer
	subscribers int
}

// Registry is the active-session map described in §4.4/§9. SubscriberCount
// updates normally flow in from internal/hub's onIdle/onJoin hooks.
type Registry struct {
	mu                    sync.Mutex
	active                map[ids.SessionID]*entry
	maxConcurrentSessions int
	idleTimeout           time.Duration
	spawn                 Spawner
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithMaxConcurrentSessions sets the capacity enforced on resume/ensure.
// Zero means unlimited.
func WithMaxConcurrentSessions(max int) Option {
	return func(r *Registry) { r.maxConcurrentSessions = max }
}

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) { r.idleTimeout = d }
}

// New creates an empty Registry. spawn is invoked whenever a session
// needs a task created (fresh Create or a Resume of a suspended session).
func New(spawn Spawner, opts ...Option) *Registry {
	r := &Registry{
		active:      make(map[ids.SessionID]*entry),
		idleTimeout: DefaultIdleTimeout,
		spawn:       spawn,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure returns the task for session, spawning one if it is not
// currently active. It enforces max_concurrent_sessions on spawn.
func (r *Registry) Ensure(ctx context.Context, session ids.SessionID) (Task, error) {
	r.mu.Lock()
	if e, ok := r.active[session]; ok {
		task := e.task
		r.mu.Unlock()
		return task, nil
	}
	current := len(r.active)
	if r.maxConcurrentSessions > 0 && current >= r.maxConcurrentSessions {
		r.mu.Unlock()
		return nil, &CapacityExceeded{Current: current, Max: r.maxConcurrentSessions}
	}
	r.mu.Unlock()

	task, err := r.spawn(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("registry: spawn session %s: %w", session, err)
	}

	r.mu.Lock()
	if e, ok := r.active[session]; ok {
		// Lost a race with a concurrent Ensure; keep the existing task
		// and let the one we just spawned be garbage (it never ran
		// the main loop, since Ensure only returns after spawn here).
		r.mu.Unlock()
		return e.task, nil
	}
	r.active[session] = &entry{task: task}
	r.mu.Unlock()

	logging.Logger.Info().Str("session", session.String()).Msg("registry: session active")
	return task, nil
}

// Remove drops a session from the active map, e.g. once its task has
// finished exiting after a suspend or a deletion.
func (r *Registry) Remove(session ids.SessionID) {
	r.mu.Lock()
	e, ok := r.active[session]
	if ok {
		if e.idleTimer != nil {
			e.idleTimer.Stop()
		}
		delete(r.active, session)
	}
	r.mu.Unlock()
	if ok {
		logging.Logger.Info().Str("session", session.String()).Msg("registry: session removed")
	}
}

// ActiveCount returns the number of sessions currently tracked.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// IsActive reports whether session currently has a running task.
func (r *Registry) IsActive(session ids.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[session]
	return ok
}

// OnSubscriberJoined disarms any pending idle timer for session — the
// wiring package's hub.New(onIdle) callback calls OnSubscriberLeft,
// and the RPC layer's Subscribe path calls this on every new subscriber.
func (r *Registry) OnSubscriberJoined(session ids.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[session]
	if !ok {
		return
	}
	e.subscribers++
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
}

// OnSubscriberLeft is the hub.Hub onIdle-style callback: called whenever
// a session's subscriber count may have reached zero. It arms the idle
// timer, which calls suspend(session) on expiry unless a new subscriber
// arrives first (OnSubscriberJoined cancels the timer).
func (r *Registry) OnSubscriberLeft(session ids.SessionID, suspend func(ids.SessionID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[session]
	if !ok {
		return
	}
	if e.subscribers > 0 {
		e.subscribers--
	}
	if e.subscribers > 0 {
		return
	}
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(r.idleTimeout, func() {
		logging.Logger.Info().Str("session", session.String()).Msg("registry: idle timeout, suspending")
		suspend(session)
	})
}
