package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink-io/doorlink-core/internal/reconcile"
)

// handleListInbox returns stored MQTT inbox messages, most recent first.
//
// Query parameters:
//   - door_id: filter by resolved door
//   - processed: "true" or "false"
//   - limit: maximum rows to return (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListInbox(w http.ResponseWriter, r *http.Request) {
	filter := reconcile.InboxFilter{
		DoorID: r.URL.Query().Get("door_id"),
	}
	if v := r.URL.Query().Get("processed"); v != "" {
		processed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "processed must be true or false")
			return
		}
		filter.Processed = &processed
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = parsed
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = parsed
	}

	messages, err := s.inbox.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list inbox messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages, "count": len(messages)})
}

// handleInboxStats returns aggregate inbox counts.
func (s *Server) handleInboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.inbox.Stats(r.Context())
	if err != nil {
		writeInternalError(w, "failed to compute inbox stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleGetInboxMessage returns a single stored inbox message.
func (s *Server) handleGetInboxMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := s.inbox.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconcile.ErrMessageNotFound) {
			writeNotFound(w, "inbox message not found")
			return
		}
		writeInternalError(w, "failed to get inbox message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// handleReprocessInboxMessage re-runs the reconciliation handler for a
// stored message. Useful after a handler bug fix: the raw payload is
// replayed against the current handler.
func (s *Server) handleReprocessInboxMessage(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeInternalError(w, "reprocessing is not available")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.dispatcher.Reprocess(r.Context(), id); err != nil {
		if errors.Is(err, reconcile.ErrMessageNotFound) {
			writeNotFound(w, "inbox message not found")
			return
		}
		writeBadRequest(w, "reprocess failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reprocessed": true})
}
