package reconcile

import "errors"

var (
	// ErrMessageNotFound indicates no inbox row matched the lookup.
	ErrMessageNotFound = errors.New("reconcile: inbox message not found")

	// ErrDuplicateMessage indicates the fingerprint already exists in the
	// inbox. Expected under at-least-once delivery; callers drop silently.
	ErrDuplicateMessage = errors.New("reconcile: duplicate message fingerprint")
)
