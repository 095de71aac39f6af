package calendar

import "errors"

var (
	// ErrNotFound is returned when an event or directory does not exist.
	ErrNotFound = errors.New("calendar: not found")
	// ErrRejected is returned when the provider refuses a mutation.
	ErrRejected = errors.New("calendar: rejected by provider")
)
