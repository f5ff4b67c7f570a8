package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink-io/doorlink-core/internal/door"
)

// addCardRequest is the request body for POST /doors/{id}/cards.
type addCardRequest struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// handleListCards returns the door's mirrored IC card rows.
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	cards, err := s.cards.ListByDoor(r.Context(), d.ID)
	if err != nil {
		writeInternalError(w, "failed to list cards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": cards, "count": len(cards)})
}

// handleAddCard sends an add-card intent to the device. The mirrored row
// appears once the device confirms it in its next card report.
func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	var req addCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UID == "" {
		writeBadRequest(w, "uid is required")
		return
	}

	if s.publisher == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}
	if err := s.publisher.AddCard(d.TopicPrefix, req.UID, req.Name); err != nil {
		writeBadGateway(w, "failed to send card to device")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true})
}

// handleRemoveCard sends a remove-card intent to the device.
func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	cardID := chi.URLParam(r, "cardID")
	c, err := s.cards.GetByID(r.Context(), cardID)
	if err != nil {
		if errors.Is(err, door.ErrCardNotFound) {
			writeNotFound(w, "card not found")
			return
		}
		writeInternalError(w, "failed to get card")
		return
	}
	if c.DoorID != d.ID {
		writeNotFound(w, "card not found")
		return
	}

	if s.publisher == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}
	if err := s.publisher.RemoveCard(d.TopicPrefix, c.CardUID); err != nil {
		writeBadGateway(w, "failed to send remove to device")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true})
}

// handleStartSwipeAdd puts the device into swipe-to-add mode. The next card
// presented at the reader is enrolled and reported back.
func (s *Server) handleStartSwipeAdd(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}
	if s.publisher == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}

	if err := s.publisher.StartSwipeAdd(d.TopicPrefix); err != nil {
		writeBadGateway(w, "failed to start swipe add")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

// handleRequestCards asks the device to push a fresh card report.
func (s *Server) handleRequestCards(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}
	if s.commands == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}

	if err := s.commands.RequestICCards(r.Context(), d.ID); err != nil {
		writeBadGateway(w, "failed to request card report")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"requested": true})
}
