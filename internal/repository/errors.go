package repository

import "errors"

// Sentinel errors for the messaging core. Callers classify with errors.Is:
// ErrNotFound and ErrPermissionDenied are never retried; anything else coming
// out of the store is treated as transient and retried only for idempotent
// operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrEditWindowExpired = errors.New("edit window expired")
	ErrNoChange          = errors.New("no change")
	ErrConflict          = errors.New("conflict")
)
