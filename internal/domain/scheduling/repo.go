package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrInvalidTransition means the appointment's status does not allow
	// the requested change.
	ErrInvalidTransition = errors.New("invalid appointment status change")
	ErrStaleAppointment  = errors.New("appointment changed concurrently")
)

type AppointmentRepository interface {
	// Create inserts a. Inserting an id that already exists is a no-op, so a
	// retried booking does not fail on its own earlier write.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus writes status and cancellation reason when VersionID
	// still matches, and bumps it.
	UpdateStatus(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}
