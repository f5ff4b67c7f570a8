package door

import "errors"

// Domain errors for the door package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, door.ErrDoorNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDoorNotFound is returned when a door ID or topic prefix does not exist.
	ErrDoorNotFound = errors.New("door: not found")

	// ErrDoorExists is returned when creating a door whose ID or topic prefix
	// is already taken.
	ErrDoorExists = errors.New("door: already exists")

	// ErrPasscodeNotFound is returned when a passcode ID does not exist.
	ErrPasscodeNotFound = errors.New("door: passcode not found")

	// ErrPasscodeExists is returned when creating a passcode with an ID that
	// already exists.
	ErrPasscodeExists = errors.New("door: passcode already exists")

	// ErrCardNotFound is returned when an IC card ID does not exist.
	ErrCardNotFound = errors.New("door: ic card not found")

	// ErrInvalidTopicPrefix is returned when a topic prefix is empty or
	// contains a path separator (prefixes are single-segment).
	ErrInvalidTopicPrefix = errors.New("door: invalid topic prefix")
)
