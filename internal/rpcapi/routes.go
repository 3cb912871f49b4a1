package rpcapi

import "github.com/go-chi/chi/v5"

// setupRoutes wires the §6.1 RPC surface onto the chi router. Every
// session-scoped operation carries the session id in the path, mirroring
// the spec's "each carries session_id" note for the streaming variant.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/activate", s.activateSession)
			r.Get("/conversation", s.getConversation)

			r.Post("/message", s.sendMessage)
			r.Patch("/message/{messageID}", s.editMessage)

			r.Post("/tool-approval/{toolCallID}", s.toolApproval)
			r.Post("/cancel", s.cancel)
			r.Post("/command", s.executeCommand)
			r.Post("/bash", s.executeBashCommand)

			r.Get("/files", s.listFiles)
			r.Get("/mcp-servers", s.getMcpServers)

			r.Get("/events", s.subscribe)
		})
	})

	// MCP servers are process-wide (every session shares one mcp.Client),
	// so connect/disconnect live outside /session rather than nested
	// under a session id the way getMcpServers is.
	r.Route("/mcp-servers", func(r chi.Router) {
		r.Post("/", s.connectMcpServer)
		r.Delete("/{name}", s.disconnectMcpServer)
	})
}
