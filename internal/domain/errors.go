package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidLayout        = errors.New("invalid layout")
	ErrSeatUnavailable      = errors.New("seat no longer available")
	ErrCapacityExceeded     = errors.New("seat limit reached")
	ErrSchemaMissing        = errors.New("seat inventory schema missing")
)

// UnavailableError lists the seats that lost a reservation race or are no
// longer in the state the caller expected.
type UnavailableError struct {
	SeatIDs []uuid.UUID
	Reason  string
}

func (e *UnavailableError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = id.String()
	}
	msg := fmt.Sprintf("%s: %s", ErrSeatUnavailable.Error(), strings.Join(ids, ","))
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}

func Unavailable(reason string, ids ...uuid.UUID) error {
	return &UnavailableError{SeatIDs: ids, Reason: reason}
}

// CapacityError is returned when a selection or request would exceed the
// per-session seat limit.
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("you can select maximum %d seats", e.Max)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

func InvalidLayout(reason string) error {
	return errors.Wrap(ErrInvalidLayout, reason)
}
