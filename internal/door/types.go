package door

import (
	"context"
	"database/sql"
	"time"
)

// LockState is the mirrored state of a door's bolt.
type LockState string

// Lock states reported by devices. Anything a device reports outside
// "locked"/"unlocked" maps to LockStateUnknown.
const (
	LockStateUnknown  LockState = "unknown"
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
)

// ParseLockState maps a device-reported state string onto the mirror enum.
// Unrecognised values map to LockStateUnknown rather than erroring: the
// mirror records what the device said, not what we expected.
func ParseLockState(s string) LockState {
	switch s {
	case string(LockStateLocked):
		return LockStateLocked
	case string(LockStateUnlocked):
		return LockStateUnlocked
	default:
		return LockStateUnknown
	}
}

// PasscodeType classifies a passcode row.
type PasscodeType string

// Passcode types as reported by devices.
const (
	// PasscodeTypeMaster is the door's primary code. It is mirrored onto
	// Door.DoorCode and never stored as a Passcode row.
	PasscodeTypeMaster PasscodeType = "master"

	// PasscodeTypeOneTime is a single-use code. Soft-expired (deactivated)
	// once the device stops reporting it.
	PasscodeTypeOneTime PasscodeType = "one_time"

	// PasscodeTypeTimed is a code with a validity window. Fully replaced
	// on every device report.
	PasscodeTypeTimed PasscodeType = "timed"
)

// Door is the server-side mirror of a physical lock.
type Door struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	DoorCode    string `json:"door_code,omitempty"`
	TopicPrefix string `json:"topic_prefix"`
	MACAddress  string `json:"mac_address,omitempty"`

	// Mirrored device state
	LockState LockState `json:"lock_state"`
	Battery   int       `json:"battery"`

	// Sync bookkeeping
	LastSyncAt          *time.Time `json:"last_sync_at,omitempty"`
	LastSyncRequestedAt *time.Time `json:"last_sync_requested_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Passcode is a numeric code provisioned on a door.
type Passcode struct {
	ID       string       `json:"id"`
	DoorID   string       `json:"door_id"`
	Code     string       `json:"code"`
	Type     PasscodeType `json:"type"`
	IsActive bool         `json:"is_active"`

	// Validity window for timed codes; nil means "no bound".
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ICCard is a proximity card provisioned on a door.
type ICCard struct {
	ID       string `json:"id"`
	DoorID   string `json:"door_id"`
	CardUID  string `json:"card_uid"`
	Name     string `json:"name,omitempty"`
	IsActive bool   `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// DBTX is the subset of database/sql operations the repositories need.
// Both *sql.DB and *sql.Tx satisfy it, so repositories work standalone or
// inside a per-message transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
