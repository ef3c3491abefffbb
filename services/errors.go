package services

import "errors"

// Closed error taxonomy for the chat core. Controllers map these onto HTTP
// status codes; anything outside the set is treated as a storage fault and
// reported generically, so store internals never reach a caller.
var (
	ErrValidation = errors.New("invalid request")
	ErrForbidden  = errors.New("access forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)
