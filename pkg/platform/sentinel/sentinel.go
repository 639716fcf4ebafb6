package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and outbound clients
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: unique key already taken (symbol, job id)
//   - ErrExpired: cached entry outlived its TTL
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrUnavailable: store or remote dependency temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
