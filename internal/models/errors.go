package models

import "errors"

// Sentinel errors shared across the service. Transport layers map these to
// HTTP status codes and wire-level error events; everything else wraps them
// with %w so errors.Is keeps working through the stack.
var (
	// ErrUnauthorized means the credential is missing, malformed or expired.
	// A websocket handshake that hits this is refused before any room state
	// is touched.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the actor is authenticated but its access tier does
	// not permit the requested operation. The connection stays open.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced board or image does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the request payload is malformed, e.g. a position
	// patch containing NaN or Inf.
	ErrValidation = errors.New("validation failed")
)
