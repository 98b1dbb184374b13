// Package errdefs defines the error kinds shared by the fulfillment
// pipeline. Queue consumers use the kind of an error to decide between
// redelivery, dead-lettering, and recording a terminal failure, so every
// boundary wraps its errors with one of these sentinels.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing input. Rejected synchronously,
	// never enqueued, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup miss (unknown book, absent record).
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks a failed call to an external collaborator after
	// retries are exhausted.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrTransient marks infrastructure trouble (store or queue down,
	// external timeout). The message is redelivered, not acknowledged.
	ErrTransient = errors.New("transient failure")

	// ErrDeclined marks a definitive business decline (payment refused,
	// shipment undeliverable). Recorded as FAILED; the saga halts.
	ErrDeclined = errors.New("declined")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Upstreamf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUpstream)...)
}

// Transient tags an infrastructure error so consumers redeliver instead of
// acknowledging. Returns nil for a nil cause.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsUpstream(err error) bool   { return errors.Is(err, ErrUpstream) }
func IsTransient(err error) bool  { return errors.Is(err, ErrTransient) }
func IsDeclined(err error) bool   { return errors.Is(err, ErrDeclined) }
