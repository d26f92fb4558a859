package domain

import "errors"

// Sentinel errors returned by store and broker adapters. Callers use
// errors.Is against these; they are never constructed with extra context
// beyond %w-wrapping at the call site.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrBrokerStream  = errors.New("broker stream unavailable")
	ErrContextDone   = errors.New("context cancelled")
	ErrStale         = errors.New("stale data")
)

// ErrorKind classifies a failure for logging/alerting without requiring the
// caller to unwrap a specific sentinel. It is informational only: control
// flow always branches on the sentinel errors above, never on ErrorKind.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
	ErrorKindData      ErrorKind = "data"
)
