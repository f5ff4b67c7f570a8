package api

import (
	"net/http"
	"strconv"

	"github.com/doorlink-io/doorlink-core/internal/record"
)

// handleListDoorRecords returns the door's audit trail, most recent first.
//
// Query parameters:
//   - event: filter by event name (DoorLocked, PasscodeAdded, ...)
//   - limit: maximum rows to return (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListDoorRecords(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	filter := record.Filter{
		DoorID: d.ID,
		Event:  r.URL.Query().Get("event"),
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

	result, err := s.records.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list records")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
