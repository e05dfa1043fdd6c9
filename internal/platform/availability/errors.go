package availability

import (
	"errors"
	"fmt"
)

// Errors returned by the availability engine.
var (
	ErrValidation       = errors.New("validation error")
	ErrSlotConflict     = errors.New("slot conflict")
	ErrDuplicateBooking = errors.New("duplicate booking")
	ErrEmptyQuery       = errors.New("search requires a date or a name")
	ErrBookingNotFound  = errors.New("booking not found")
)

// DuplicateBookingError reports a booking whose exact range is already booked.
type DuplicateBookingError struct {
	Date          Date
	Range         TimeRange
	AppointmentID string
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("%s: %s %s already booked by appointment %s",
		ErrDuplicateBooking, e.Date, e.Range, e.AppointmentID)
}

func (e *DuplicateBookingError) Unwrap() error { return ErrDuplicateBooking }

func wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

func validationErrorf(format string, args ...interface{}) error {
	return wrapf(ErrValidation, format, args...)
}

func conflictErrorf(format string, args ...interface{}) error {
	return wrapf(ErrSlotConflict, format, args...)
}
