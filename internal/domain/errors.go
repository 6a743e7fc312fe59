package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by repositories
// and services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// General errors
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Account errors
var (
	ErrAccountNotFound      = notFound("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientScore    = errors.New("insufficient score")
)

// Catalog errors
var (
	ErrChallengeNotFound = notFound("challenge not found")
	ErrCatalogConflict   = errors.New("catalog change conflicts with recorded progress")
)

// notFoundError lets specific lookups match ErrNotFound with errors.Is.
type notFoundError struct {
	msg string
}

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
