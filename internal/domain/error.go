package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound                = errors.New("entity not found")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrDuplicateTransaction    = errors.New("transaction id already submitted")
	ErrDuplicatePendingRequest = errors.New("a pending request for this plan already exists")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrInvalidState            = errors.New("invalid state transition")
	ErrUpstreamFailure         = errors.New("payment gateway call failed")
	ErrConcurrentUpdate        = errors.New("record was modified concurrently")
	ErrRateLimited             = errors.New("too many requests")
	ErrUnauthorized            = errors.New("unauthorized")

	// Infra errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid exec context")
)
