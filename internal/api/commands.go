package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/doorlink-io/doorlink-core/internal/command"
)

// handleLockDoor issues a lock command to the door.
func (s *Server) handleLockDoor(w http.ResponseWriter, r *http.Request) {
	s.issueCommand(w, r, command.KindLock)
}

// handleUnlockDoor issues an unlock command to the door.
func (s *Server) handleUnlockDoor(w http.ResponseWriter, r *http.Request) {
	s.issueCommand(w, r, command.KindUnlock)
}

// handleSyncDoor asks the door to push a full state, passcode, and card report.
func (s *Server) handleSyncDoor(w http.ResponseWriter, r *http.Request) {
	s.issueCommand(w, r, command.KindSync)
}

// issueCommand runs the ownership check and maps command service errors
// onto HTTP statuses. Commands are accepted, not completed: the device
// acknowledges asynchronously via its state report.
func (s *Server) issueCommand(w http.ResponseWriter, r *http.Request, kind command.Kind) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}
	if s.commands == nil {
		writeBadGateway(w, "device messaging is not available")
		return
	}

	var (
		cmd *command.Command
		err error
	)
	switch kind {
	case command.KindLock:
		cmd, err = s.commands.Lock(r.Context(), d.ID)
	case command.KindUnlock:
		cmd, err = s.commands.Unlock(r.Context(), d.ID)
	case command.KindSync:
		cmd, err = s.commands.Sync(r.Context(), d.ID)
	default:
		writeBadRequest(w, "unknown command kind")
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, command.ErrCommandPending):
			writeConflict(w, "a lock/unlock command is already pending for this door")
		case errors.Is(err, command.ErrPublishFailed):
			writeBadGateway(w, "failed to deliver command to device")
		default:
			writeInternalError(w, "failed to issue command")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, cmd)
}

// handleListDoorCommands returns the door's recent command ledger rows.
//
// Query parameters:
//   - limit: maximum rows to return (default 50, max 200)
func (s *Server) handleListDoorCommands(w http.ResponseWriter, r *http.Request) {
	d, ok := s.ownedDoor(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	if s.commandRepo == nil {
		writeInternalError(w, "command ledger is not available")
		return
	}
	cmds, err := s.commandRepo.ListByDoor(r.Context(), d.ID, limit)
	if err != nil {
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"commands": cmds, "count": len(cmds)})
}
