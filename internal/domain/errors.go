package domain

import "errors"

// Outcome kinds returned by the lifecycle core. Callers match them with errors.Is.
var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrForbidden              = errors.New("forbidden")
	ErrIllegalTransition      = errors.New("illegal transition")
	ErrRecordImmutable        = errors.New("record immutable")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
)
