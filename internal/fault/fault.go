// Package fault defines the error taxonomy shared by every HiveDAO
// service. Handlers map these types onto HTTP status codes with Status;
// everything below the API layer works in terms of the types themselves.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Validation marks malformed or out-of-range input. Never retried.
type Validation struct {
	Msg string
}

func (e *Validation) Error() string { return e.Msg }

// Validationf builds a Validation error with fmt-style formatting.
func Validationf(format string, args ...interface{}) *Validation {
	return &Validation{Msg: fmt.Sprintf(format, args...)}
}

// NotFound marks a referenced entity that does not exist.
type NotFound struct {
	Entity string
	Key    string
}

func (e *NotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// Conflict marks a uniqueness or idempotency violation (duplicate
// registration, double vote, re-review). Details carries fields the
// caller can use to self-resolve, e.g. the existing position and tier
// of an already-registered agent.
type Conflict struct {
	Msg     string
	Details map[string]interface{}
}

func (e *Conflict) Error() string { return e.Msg }

// TransientStore marks a store timeout or throttle. Safe to retry with
// backoff; all mutations are keyed so a retry cannot double-apply.
type TransientStore struct {
	Op  string
	Err error
}

func (e *TransientStore) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *TransientStore) Unwrap() error { return e.Err }

// Upstream marks a failure in an external collaborator (governance
// backend, payment facilitator, identity oracle).
type Upstream struct {
	Service string
	Err     error
}

func (e *Upstream) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *Upstream) Unwrap() error { return e.Err }

// Status maps an error to its HTTP status code. Unrecognized errors are
// internal failures.
func Status(err error) int {
	var (
		validation *Validation
		notFound   *NotFound
		conflict   *Conflict
		transient  *TransientStore
		upstream   *Upstream
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &transient):
		return http.StatusServiceUnavailable
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ConflictDetails extracts the self-resolution payload from a Conflict
// error, or nil if err is not a Conflict.
func ConflictDetails(err error) map[string]interface{} {
	var conflict *Conflict
	if errors.As(err, &conflict) {
		return conflict.Details
	}
	return nil
}
