// Package rpcapi implements the §6.1 RPC surface over HTTP: unary JSON
// endpoints for session lifecycle and commands, plus a Server-Sent Events
// stream for the per-session event feed. It is a concrete transport for a
// surface the specification describes independent of any wire protocol;
// chi + SSE is kept from the teacher's own internal/server, which exposes
// its event bus the same way.
package rpcapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/hub"
	"github.com/agentrt/runtime/internal/ids"
	"github.com/agentrt/runtime/internal/logging"
	"github.com/agentrt/runtime/internal/mcp"
	"github.com/agentrt/runtime/internal/registry"
	"github.com/agentrt/runtime/internal/runtime"
)

// Config holds the rpcapi HTTP server's own settings, separate from
// runtime-wide configuration (internal/config.Config carries that and is
// translated into this by cmd/agentrt).
type Config struct {
	Listen       string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the defaults used when cmd/agentrt doesn't
// override them.
func DefaultConfig() Config {
	return Config{
		Listen:       "127.0.0.1:7890",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout: SSE streams run indefinitely
	}
}

// SessionFactory builds a fresh Session aggregate (config, workspace,
// default model) for a session id that doesn't exist yet; Server calls it
// from CreateSession. Resuming an existing session only needs the id, so
// ActivateSession doesn't go through this.
type SessionFactory func(ctx context.Context, id ids.SessionID, defaultModel string, metadata map[string]string) (runtime.Session, error)

// Server is the RPC surface's HTTP entry point. It holds no per-session
// mutable state itself — that lives in the registry's tasks and the
// event store — so Server is safe to share across goroutines without its
// own lock, mirroring the teacher's Server.
type Server struct {
	cfg     Config
	router  *chi.Mux
	httpSrv *http.Server

	registry *registry.Registry
	hub      *hub.Hub
	store    eventstore.Store
	factory  SessionFactory

	catalog       *catalog
	mcpStatus     func() []mcp.ServerStatus
	mcpConnect    McpConnectFunc
	mcpDisconnect McpDisconnectFunc
}

// McpConnectRequest is the wire shape for dynamically connecting a new
// MCP server (§6.1's analogue of the original runtime's
// Effect::ConnectMcpServer). It carries the same fields
// internal/config.McpServerConfig does, spelled out here so rpcapi
// doesn't need to import internal/config just for this one request type.
type McpConnectRequest struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"`
	Command   []string          `json:"command,omitempty"`
	URL       string            `json:"url,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// McpConnectFunc and McpDisconnectFunc are wired by cmd/agentrt against
// the app.Runtime methods of the same shape, the same indirection
// SessionFactory already uses to keep rpcapi decoupled from the wiring
// package.
type McpConnectFunc func(ctx context.Context, req McpConnectRequest) error
type McpDisconnectFunc func(name string) error

// New builds a Server wired against the given registry/hub/store and a
// factory for brand-new sessions.
func New(cfg Config, reg *registry.Registry, h *hub.Hub, store eventstore.Store, factory SessionFactory) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		registry: reg,
		hub:      h,
		store:    store,
		factory:  factory,
		catalog:  newCatalog(store),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	if s.cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// SetMCPStatusFunc wires the §6.1 GetMcpServers RPC to a process-wide MCP
// client's status report. cmd/agentrt calls this after New since the MCP
// client is owned by the wiring package, not the Server itself. Leaving
// it unset makes getMcpServers report an empty list rather than fail.
func (s *Server) SetMCPStatusFunc(f func() []mcp.ServerStatus) {
	s.mcpStatus = f
}

// SetMCPControlFuncs wires the connect/disconnect MCP-server endpoints
// to the wiring package's implementation, the runtime analogue of the
// original's ConnectMcpServer/DisconnectMcpServer effects. Leaving these
// unset makes both endpoints report a server error rather than silently
// no-op, since an operator posting to them expects an actual connection
// attempt.
func (s *Server) SetMCPControlFuncs(connect McpConnectFunc, disconnect McpDisconnectFunc) {
	s.mcpConnect = connect
	s.mcpDisconnect = disconnect
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start runs the HTTP server until it errors or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	logging.Logger.Info().Str("addr", s.cfg.Listen).Msg("rpcapi: listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("rpcapi: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
