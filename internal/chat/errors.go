package chat

import "errors"

// Error kinds returned by the chat core. Callers match them with errors.Is;
// the concrete error wraps the cause.
var (
	ErrValidation        = errors.New("invalid payload")
	ErrPersistence       = errors.New("persistence failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid relation transition")
)
