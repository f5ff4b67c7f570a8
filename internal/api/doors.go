package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink-io/doorlink-core/internal/door"
)

// createDoorRequest is the request body for POST /doors.
type createDoorRequest struct {
	Name        string `json:"name"`
	TopicPrefix string `json:"topic_prefix"`
	MACAddress  string `json:"mac_address"`
	OwnerID     string `json:"owner_id"` // admins may create doors for other owners
}

// updateDoorRequest is the request body for PATCH /doors/{id}.
// Only the fields present are changed; device-mirrored state is not editable.
type updateDoorRequest struct {
	Name       *string `json:"name"`
	MACAddress *string `json:"mac_address"`
}

// setDoorCodeRequest is the request body for PUT /doors/{id}/code.
type setDoorCodeRequest struct {
	Code string `json:"code"`
}

// handleListDoors returns the caller's doors. Admins see every door.
func (s *Server) handleListDoors(w http.ResponseWriter, r *http.Request) {
	var (
		doors []door.Door
		err   error
	)
	if isAdmin(r) {
		doors, err = s.doors.List(r.Context())
	} else {
		doors, err = s.doors.ListByOwner(r.Context(), callerClaims(r).Subject)
	}
	if err != nil {
		writeInternalError(w, "failed to list doors")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"doors": doors, "count": len(doors)})
}

// handleCreateDoor registers a new door. The caller becomes the owner unless
// an admin names a different owner in the request.
func (s *Server) handleCreateDoor(w http.ResponseWriter, r *http.Request) {
	var req createDoorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	ownerID := callerClaims(r).Subject
	if req.OwnerID != "" && isAdmin(r) {
		ownerID = req.OwnerID
	}

	d := &door.Door{
		OwnerID:     ownerID,
		Name:        req.Name,
		TopicPrefix: req.TopicPrefix,
		MACAddress:  req.MACAddress,
	}
	if err := s.doors.Create(r.Context(), d); err != nil {
		switch {
		case errors.Is(err, door.ErrInvalidTopicPrefix):
			writeBadRequest(w, "topic_prefix must be a single non-empty topic segment")
		case errors.Is(err, door.ErrDoorExists):
			writeConflict(w, "a door with this topic prefix already exists")
		default:
			writeInternalError(w, "failed to create door")
		}
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// handleGetDoor returns a single door by ID.
func (s *Server) handleGetDoor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDoor changes a door's editable fields.
func (s *Server) handleUpdateDoor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	var req updateDoorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeBadRequest(w, "name cannot be empty")
			return
		}
		d.Name = *req.Name
	}
	if req.MACAddress != nil {
		d.MACAddress = *req.MACAddress
	}

	if err := s.doors.Update(r.Context(), d); err != nil {
		writeInternalError(w, "failed to update door")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDoor removes a door. Pending commands keep their ledger rows
// with the door reference cleared.
func (s *Server) handleDeleteDoor(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	if err := s.doors.Delete(r.Context(), d.ID); err != nil {
		writeInternalError(w, "failed to delete door")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetDoorCode updates the door's master code and pushes it to the
// device as a master passcode edit.
func (s *Server) handleSetDoorCode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	var req setDoorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	if s.publisher == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}
	if err := s.publisher.AddPasscode(d.TopicPrefix, string(door.PasscodeTypeMaster), req.Code, nil, nil); err != nil {
		writeBadGateway(w, "failed to send code to device")
		return
	}

	if err := s.doors.SetDoorCode(r.Context(), d.ID, req.Code); err != nil {
		writeInternalError(w, "failed to store door code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// ownedDoor loads the door from the URL and enforces ownership. Non-admins
// get a 404 for doors they do not own, so door IDs are not discoverable.
func (s *Server) ownedDoor(w http.ResponseWriter, r *http.Request) (*door.Door, bool) {
	id := chi.URLParam(r, "id")

	d, err := s.doors.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, door.ErrDoorNotFound) {
			writeNotFound(w, "door not found")
			return nil, false
		}
		writeInternalError(w, "failed to get door")
		return nil, false
	}

	if !isAdmin(r) && d.OwnerID != callerClaims(r).Subject {
		writeNotFound(w, "door not found")
		return nil, false
	}

	return d, true
}
