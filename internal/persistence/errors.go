package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record collides with a unique key.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a schema rule.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrOverlap is returned when an event would share its room with another
	// event during an overlapping period.
	ErrOverlap = errors.New("persistence: overlapping room booking")
)
