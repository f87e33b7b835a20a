package domain

import (
	"errors"
	"fmt"
)

// Console error taxonomy

var (
	// ErrValidation indicates a file was rejected before any network call
	ErrValidation = errors.New("upload validation failed")

	// ErrTimeout indicates a remote request exceeded its bound
	ErrTimeout = errors.New("remote request timeout")

	// ErrRemote indicates a non-success response or a transport failure
	ErrRemote = errors.New("remote service error")

	// ErrMalformedPersistedState indicates the stored console state could not be read
	ErrMalformedPersistedState = errors.New("malformed persisted state")

	// ErrStateNotFound indicates nothing has been persisted under a key yet
	ErrStateNotFound = errors.New("persisted state not found")

	// ErrStorageUnavailable indicates the storage backend has no connection
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSessionNotFound indicates an unknown session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrRequestInFlight indicates a request of the same kind is still pending for a session
	ErrRequestInFlight = errors.New("request already in flight")
)

// ValidationReason distinguishes upload rejections
type ValidationReason string

const (
	// ValidationUnsupportedType - Neither image/* nor video/*
	ValidationUnsupportedType ValidationReason = "unsupported_type"
	// ValidationTooLarge - Over the size limit for its media kind
	ValidationTooLarge ValidationReason = "too_large"
)

// ValidationError is returned by the upload validator
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets callers match with errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FailureKind tags a failed remote call
type FailureKind string

const (
	// FailureTimeout - The bounded wait expired
	FailureTimeout FailureKind = "timeout"
	// FailureRemote - Non-2xx status, transport error or undecodable body
	FailureRemote FailureKind = "remote"
)

// Failure is the failure variant of a remote outcome
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap maps the failure kind onto the taxonomy sentinels
func (f *Failure) Unwrap() error {
	if f.Kind == FailureTimeout {
		return ErrTimeout
	}
	return ErrRemote
}
