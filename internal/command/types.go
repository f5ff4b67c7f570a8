package command

import (
	"context"
	"database/sql"
	"time"
)

// Kind identifies the intent of a command sent to a device.
type Kind string

const (
	KindLock   Kind = "lock"
	KindUnlock Kind = "unlock"
	KindSync   Kind = "sync"
)

// Valid reports whether the kind is one the ledger accepts.
func (k Kind) Valid() bool {
	switch k {
	case KindLock, KindUnlock, KindSync:
		return true
	}
	return false
}

// Status is the lifecycle state of a ledger row.
//
// Rows start pending. A state report that satisfies the command marks it
// success; a contradicting report or a sweeper timeout marks it failed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Command is a single row in the door_commands ledger.
type Command struct {
	ID     string `json:"id"`
	DoorID string `json:"door_id"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Status Status `json:"status"`

	SentAt  time.Time  `json:"sent_at"`
	AckedAt *time.Time `json:"acked_at,omitempty"`
}

// StaleCommand is a pending command past the acknowledgement timeout,
// joined with enough door context to notify the owner. OwnerID and
// DoorName are empty when the door has since been deleted.
type StaleCommand struct {
	Command
	OwnerID  string
	DoorName string
}

// DBTX is the subset of database operations the repository needs.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
