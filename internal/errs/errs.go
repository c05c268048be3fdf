// Package errs defines the sentinel errors shared by the service and
// repository layers. Handlers switch on these values to pick HTTP status
// codes: ErrInvalidInput maps to 400, ErrNotFound to 404, ErrUnauthorized
// to 401 and ErrConflict to 403. Keeping the taxonomy in one place lets
// every mutating operation report the same four outcomes regardless of
// which layer detected the problem.
package errs

import "errors"

// ErrInvalidInput is returned for malformed input: a bad time string, a
// booker name that fails the format rule, or a request missing both a
// title and an artist. No state change has occurred.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound is returned when the referenced timeslot, song request or
// user does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the caller's identity does not match
// the required owner or holder: booking a slot held by another session,
// or acting on another DJ's song request.
var ErrUnauthorized = errors.New("unauthorized")

// ErrConflict is returned when the entity is not in the expected state
// for the requested transition, including the losing side of a race.
// Callers must re-fetch current state before trying again; nothing is
// retried internally.
var ErrConflict = errors.New("conflict")
