package store

import "errors"

// Sentinel errors returned by Store operations. Callers (the services
// layer) translate these into protocol error responses; the store itself
// never knows about the wire protocol.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
