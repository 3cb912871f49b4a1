package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentrt/runtime/internal/approval"
	"github.com/agentrt/runtime/internal/config"
	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/hub"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/llmport"
	"github.com/agentrt/runtime/internal/logging"
	"github.com/agentrt/runtime/internal/mcp"
	"github.com/agentrt/runtime/internal/registry"
	"github.com/agentrt/runtime/internal/rpcapi"
	"github.com/agentrt/runtime/internal/runtime"
	"github.com/agentrt/runtime/internal/storage"
	"github.com/agentrt/runtime/internal/toolorch"
	"github.com/agentrt/runtime/internal/workspace"
)

// Runtime is the composition root: it holds every process-wide
// collaborator (store, hub, metrics, MCP client) a session task needs
// and knows how to build one, either fresh (CreateSession, satisfying
// rpcapi.SessionFactory) or resumed from its event log (spawn,
// satisfying registry.Spawner). cmd/agentrt constructs exactly one of
// these and wires it into a registry.Registry and an rpcapi.Server.
type Runtime struct {
	cfg     config.Config
	store   eventstore.Store
	hub     *hub.Hub
	metrics *Metrics
	mcp     *mcp.Client
	storage *storage.Storage
	llm     llmport.Client
	reg     *registry.Registry
}

// Metrics is an alias kept local so callers don't need to import
// internal/runtime just to hold the handle runtime.NewMetrics returns.
type Metrics = runtime.Metrics

// New builds a Runtime from cfg: opens the configured event store
// backend, connects every configured MCP server, and wires a
// llmport.MockClient as the LLM collaborator — per this repository's
// scope, a real provider client lives behind the llmport.Client
// interface but is not itself part of this module (see DESIGN.md); an
// operator swaps in a real implementation by replacing this one call.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*Runtime, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	mcpClient := mcp.NewClient()
	for name, sc := range cfg.McpServers {
		if err := mcpClient.AddServer(ctx, name, translateMcpConfig(sc)); err != nil {
			logging.Logger.Warn().Err(err).Str("server", name).Msg("app: mcp server connect failed")
		}
	}

	r := &Runtime{
		cfg:     cfg,
		store:   store,
		hub:     nil, // set below: the hub's onIdle callback closes over r
		metrics: runtime.NewMetrics(reg),
		mcp:     mcpClient,
		storage: storage.New(filepath.Join(cfg.DataDir, "sessions")),
		llm:     llmport.NewMockClient(),
	}
	r.hub = hub.New(r.onHubIdle)
	r.reg = registry.New(r.spawn,
		registry.WithMaxConcurrentSessions(cfg.MaxConcurrentSessions),
		registry.WithIdleTimeout(cfg.IdleSuspendAfter),
	)
	return r, nil
}

func openStore(cfg config.Config) (eventstore.Store, error) {
	switch cfg.EventStoreBackend {
	case "", "memory":
		return eventstore.NewMemoryStore(), nil
	case "sqlite":
		dsn := filepath.Join(cfg.DataDir, "events.db")
		store, err := eventstore.OpenSQLiteStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("app: opening sqlite event store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app: unknown event store backend %q", cfg.EventStoreBackend)
	}
}

func translateMcpConfig(sc config.McpServerConfig) *mcp.Config {
	var command []string
	if sc.Command != "" {
		command = append([]string{sc.Command}, sc.Args...)
	}
	return mcpConfigFrom(sc.Transport, command, sc.URL, sc.Env)
}

func mcpConfigFrom(transport string, command []string, url string, env map[string]string) *mcp.Config {
	mc := &mcp.Config{Enabled: true, URL: url, Environment: env}
	switch transport {
	case "http":
		mc.Type = mcp.TransportTypeRemote
	default:
		mc.Type = mcp.TransportTypeStdio
		mc.Command = command
	}
	return mc
}

// Registry exposes the registry.Registry this Runtime built, for
// cmd/agentrt to hand to rpcapi.New.
func (r *Runtime) Registry() *registry.Registry { return r.reg }

// Hub exposes the hub.Hub this Runtime built, for cmd/agentrt to hand to
// rpcapi.New.
func (r *Runtime) Hub() *hub.Hub { return r.hub }

// Store exposes the event store, for cmd/agentrt to hand to rpcapi.New
// and to close on shutdown.
func (r *Runtime) Store() eventstore.Store { return r.store }

// MCPStatus reports every configured MCP server's connection status, for
// rpcapi.Server.SetMCPStatusFunc.
func (r *Runtime) MCPStatus() []mcp.ServerStatus { return r.mcp.Status() }

// ConnectMcpServer adds and connects a new MCP server at runtime,
// mirroring the original runtime's ConnectMcpServer effect. It is a
// Runtime method rather than a per-session Scheduler command because
// every session in this module shares the one *mcp.Client stored on r.
// internal/workspace/mcp.go's AvailableTools re-reads the client's
// current server set on every call, so a newly connected server's tools
// reach an in-flight session's next model turn with no separate reload
// step, which is why there is no ReloadToolSchemas counterpart here.
func (r *Runtime) ConnectMcpServer(ctx context.Context, req rpcapi.McpConnectRequest) error {
	return r.mcp.AddServer(ctx, req.Name, mcpConfigFrom(req.Transport, req.Command, req.URL, req.Env))
}

// DisconnectMcpServer tears down a running MCP server, mirroring
// DisconnectMcpServer. RemoveServer closes the server's session, so a
// tool call still in flight against it is cut off, and later
// AvailableTools calls stop advertising it.
func (r *Runtime) DisconnectMcpServer(name string) error {
	return r.mcp.RemoveServer(name)
}

// Close releases resources the Runtime opened (MCP connections, a
// SQLite handle if one is in use).
func (r *Runtime) Close() error {
	if err := r.mcp.Close(); err != nil {
		logging.Logger.Warn().Err(err).Msg("app: closing mcp client")
	}
	if closer, ok := r.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// CreateSession implements rpcapi.SessionFactory: it persists the
// session_created event that seeds id's log, so the very next spawn (the
// registry.Ensure call rpcapi.createSession makes right after) has
// something to reduce. It does not itself build a Workspace/Scheduler —
// spawn is the only place those get constructed, so a freshly created
// session and one resumed later go through identical construction logic.
func (r *Runtime) CreateSession(ctx context.Context, id ids.SessionID, defaultModel string, metadata map[string]string) (runtime.Session, error) {
	if defaultModel == "" {
		defaultModel = r.cfg.DefaultModel
	}
	now := runtime.SystemClock.NowMillis()
	payload := &eventstore.SessionCreatedPayload{DefaultModel: defaultModel, Metadata: metadata}
	evt := eventstore.Event{
		SessionID:      id,
		Timestamp:      now,
		Type:           eventstore.EventSessionCreated,
		SessionCreated: payload,
	}
	if err := r.store.Append(ctx, id, 0, evt); err != nil {
		return runtime.Session{}, fmt.Errorf("app: persisting session_created: %w", err)
	}
	return runtime.Session{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		DefaultModel: defaultModel,
		Config:       runtime.Config{Metadata: metadata, ApprovalPolicy: approval.DefaultPolicy()},
	}, nil
}

var _ rpcapi.SessionFactory = (*Runtime)(nil).CreateSession

// spawn implements registry.Spawner: it reduces session's persisted log
// to a Snapshot, rebuilds the per-session Workspace/Orchestrator/policy
// from it, resumes the stepper's mid-operation state with
// runtime.ResumeStateFromSnapshot (handed to NewScheduler through its
// InitialState/InitialSeq/PendingOutputs fields), and
// starts the Scheduler's own goroutine detached from ctx — ctx here is
// only the request that triggered the spawn, not the session's lifetime.
func (r *Runtime) spawn(ctx context.Context, session ids.SessionID) (registry.Task, error) {
	events, err := r.store.Load(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("app: loading session %s: %w", session, err)
	}
	snap, err := eventstore.Reduce(events)
	if err != nil {
		return nil, fmt.Errorf("app: reducing session %s: %w", session, err)
	}

	ws := workspace.NewLocal(r.cfg.WorkspaceRoot, session, r.storage, r.mcp)
	orch := toolorch.New().WithTimeout(r.cfg.ToolTimeout)
	workspace.Register(orch, ws)

	sess := runtime.Session{
		ID:           session,
		DefaultModel: snap.DefaultModel,
		Config: runtime.Config{
			Workspace:      newWorkspaceAdapter(ws, orch),
			ApprovalPolicy: policyFromSnapshot(snap),
			Metadata:       snap.Metadata,
		},
	}

	initialState, pending := runtime.ResumeStateFromSnapshot(snap, runtime.SystemClock)

	sched := runtime.NewScheduler(runtime.NewSchedulerParams{
		Session:        sess,
		Store:          r.store,
		Hub:            r.hub,
		Orch:           orch,
		LLM:            r.llm,
		Approval:       approval.NewEngine(),
		Metrics:        r.metrics,
		InitialState:   initialState,
		InitialSeq:     snap.LatestSeq,
		PendingOutputs: pending,
		TitleGenerator: r.generateTitle,
	})
	go sched.Run(context.Background())
	return sched, nil
}

func policyFromSnapshot(snap eventstore.Snapshot) approval.Policy {
	policy := approval.DefaultPolicy()
	for tool := range snap.ApprovedTools {
		policy.Preapproved.Tools[tool] = true
	}
	if len(snap.ApprovedBash) > 0 {
		patterns := make([]string, 0, len(snap.ApprovedBash))
		for pattern := range snap.ApprovedBash {
			patterns = append(patterns, pattern)
		}
		policy.Preapproved.PerTool["bash"] = approval.PerToolPolicy{Patterns: patterns}
	}
	return policy
}

// generateTitle is wired as every Scheduler's TitleGenerator. It makes
// no model call: the title is the session's first user message, cut to
// its first 48 bytes when it is longer than that.
func (r *Runtime) generateTitle(ctx context.Context, firstUserText string) (string, error) {
	if len(firstUserText) <= 48 {
		return firstUserText, nil
	}
	return firstUserText[:48], nil
}

// onHubIdle is the hub.New(onIdle) callback: it forwards to the
// registry's own idle-timer bookkeeping, then supplies the suspend
// callback the registry invokes once the timer actually fires.
func (r *Runtime) onHubIdle(session ids.SessionID) {
	r.reg.OnSubscriberLeft(session, r.suspend)
}

func (r *Runtime) suspend(session ids.SessionID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	task, err := r.reg.Ensure(ctx, session)
	if err != nil {
		return
	}
	if err := task.RequestSuspend(ctx); err != nil {
		logging.Logger.Warn().Err(err).Str("session", session.String()).Msg("app: suspend failed")
	}
	r.reg.Remove(session)
}
