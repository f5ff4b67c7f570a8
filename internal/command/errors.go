package command

import "errors"

var (
	// ErrCommandNotFound indicates no ledger row matched the lookup.
	ErrCommandNotFound = errors.New("command: command not found")

	// ErrCommandPending indicates the door already has an outstanding
	// lock/unlock command that has not been resolved yet.
	ErrCommandPending = errors.New("command: a lock/unlock command is already pending for this door")

	// ErrInvalidKind indicates an unrecognised command kind.
	ErrInvalidKind = errors.New("command: invalid command kind")

	// ErrPublishFailed indicates the broker rejected the outbound publish.
	// The ledger row, if any, has already been resolved as failed.
	ErrPublishFailed = errors.New("command: publish failed")
)
