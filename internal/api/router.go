package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Put("/auth/password", s.handleChangePassword)

			// WS ticket requires authentication - user must be logged in
			// to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Door endpoints
			r.Route("/doors", func(r chi.Router) {
				r.Get("/", s.handleListDoors)
				r.Post("/", s.handleCreateDoor)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDoor)
					r.Patch("/", s.handleUpdateDoor)
					r.Delete("/", s.handleDeleteDoor)
					r.Put("/code", s.handleSetDoorCode)

					// Commands
					r.Post("/lock", s.handleLockDoor)
					r.Post("/unlock", s.handleUnlockDoor)
					r.Post("/sync", s.handleSyncDoor)
					r.Get("/commands", s.handleListDoorCommands)

					// Passcodes
					r.Route("/passcodes", func(r chi.Router) {
						r.Get("/", s.handleListPasscodes)
						r.Post("/", s.handleAddPasscode)
						r.Post("/request", s.handleRequestPasscodes)
						r.Delete("/{passcodeID}", s.handleDeletePasscode)
					})

					// IC cards
					r.Route("/cards", func(r chi.Router) {
						r.Get("/", s.handleListCards)
						r.Post("/", s.handleAddCard)
						r.Post("/swipe", s.handleStartSwipeAdd)
						r.Post("/request", s.handleRequestCards)
						r.Delete("/{cardID}", s.handleRemoveCard)
					})

					// Audit trail
					r.Get("/records", s.handleListDoorRecords)
				})
			})

			// MQTT inbox audit (admin only)
			r.Route("/inbox", func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Get("/", s.handleListInbox)
				r.Get("/stats", s.handleInboxStats)
				r.Get("/{id}", s.handleGetInboxMessage)
				r.Post("/{id}/reprocess", s.handleReprocessInboxMessage)
			})

			// User management (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
