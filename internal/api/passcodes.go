package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink-io/doorlink-core/internal/door"
)

// addPasscodeRequest is the request body for POST /doors/{id}/passcodes.
// The passcode is sent to the device as an intent; the database row appears
// once the device confirms it in its next passcode report.
type addPasscodeRequest struct {
	Code      string     `json:"code"`
	Type      string     `json:"type"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
}

// handleListPasscodes returns the door's mirrored passcode rows.
func (s *Server) handleListPasscodes(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	codes, err := s.passcodes.ListByDoor(r.Context(), d.ID)
	if err != nil {
		writeInternalError(w, "failed to list passcodes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"passcodes": codes, "count": len(codes)})
}

// handleAddPasscode sends an add-passcode intent to the device.
func (s *Server) handleAddPasscode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	var req addPasscodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}
	switch door.PasscodeType(req.Type) {
	case door.PasscodeTypeOneTime, door.PasscodeTypeTimed:
	default:
		writeBadRequest(w, "type must be one_time or timed")
		return
	}

	if s.publisher == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}
	if err := s.publisher.AddPasscode(d.TopicPrefix, req.Type, req.Code, req.ValidFrom, req.ValidTo); err != nil {
		writeBadGateway(w, "failed to send passcode to device")
		return
	}

	// The device confirms via its next passcode report; nothing is
	// written locally yet.
	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true})
}

// handleDeletePasscode sends a delete-passcode intent to the device.
// The mirrored row disappears when the device's next report omits the code.
func (s *Server) handleDeletePasscode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	passcodeID := chi.URLParam(r, "passcodeID")
	p, err := s.passcodes.GetByID(r.Context(), passcodeID)
	if err != nil {
		if errors.Is(err, door.ErrPasscodeNotFound) {
			writeNotFound(w, "passcode not found")
			return
		}
		writeInternalError(w, "failed to get passcode")
		return
	}
	if p.DoorID != d.ID {
		writeNotFound(w, "passcode not found")
		return
	}

	if s.publisher == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}
	if err := s.publisher.DeletePasscode(d.TopicPrefix, string(p.Type), p.Code); err != nil {
		writeBadGateway(w, "failed to send delete to device")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true})
}

// handleRequestPasscodes asks the device to push a fresh passcode report.
func (s *Server) handleRequestPasscodes(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}
	if s.commands == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}

	if err := s.commands.RequestPasscodes(r.Context(), d.ID); err != nil {
		writeBadGateway(w, "failed to request passcode report")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"requested": true})
}
