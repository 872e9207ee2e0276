package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyHeld          = errors.New("seat already held")
	ErrAlreadyConfirmed     = errors.New("seat already confirmed")
	ErrNotHeld              = errors.New("seat not held")
	ErrImmutable            = errors.New("confirmed seat is immutable")
	ErrLockTimeout          = errors.New("seat lock timeout")
	ErrAdmissionRejected    = errors.New("system overloaded")
	ErrWorkflowTimeout      = errors.New("booking workflow timeout")
	ErrInterrupted          = errors.New("booking interrupted by shutdown")
	ErrVersionConflict      = errors.New("reservation version conflict")
	ErrSerializationFailure = errors.New("serialization failure")
	ErrInvalidInput         = errors.New("invalid input")
)
