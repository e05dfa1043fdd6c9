package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/platform/auth"
	engine "github.com/medportal/portal/internal/platform/availability"
	"github.com/medportal/portal/internal/platform/db"
)

// SlotBooker is the part of the availability service appointments use.
type SlotBooker interface {
	BookSlot(ctx context.Context, doctorID string, date engine.Date, r engine.TimeRange, appointmentID string) (engine.Record, error)
	ReleaseSlot(ctx context.Context, doctorID string, date engine.Date, r engine.TimeRange, appointmentID string) (engine.Record, error)
}

type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	// StrictDuplicates rejects a repeated booking even when the caller
	// already holds the slot.
	StrictDuplicates bool
	StoreTimeout     time.Duration
}

type Service struct {
	appointments AppointmentRepository
	slots        SlotBooker
	tx           Transactor
	cfg          Config
	logger       zerolog.Logger
}

func NewService(appts AppointmentRepository, slots SlotBooker, tx Transactor, logger zerolog.Logger, cfg Config) *Service {
	return &Service{
		appointments: appts,
		slots:        slots,
		tx:           tx,
		cfg:          cfg,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

func (s *Service) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RetryOnTimeout(ctx, s.cfg.StoreTimeout, func(ctx context.Context) error {
		return s.tx.InTx(ctx, fn)
	})
}

// BookAppointment books the requested slot and records the appointment in
// one transaction. created is false when a non-strict repeat of the caller's
// own booking returned the existing appointment.
func (s *Service) BookAppointment(ctx context.Context, sess auth.Session, req BookRequest) (appt *Appointment, created bool, err error) {
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: invalid doctor_id", engine.ErrValidation)
	}
	patientID := req.PatientID
	if patientID == "" {
		patientID = sess.UserID
	}
	if !sess.CanActForPatient(patientID) {
		return nil, false, auth.ErrForbidden
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		return nil, false, err
	}
	rng, err := engine.NewTimeRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, false, err
	}

	a := &Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      date,
		StartTime: rng.Start,
		EndTime:   rng.End,
		Status:    StatusBooked,
		Reason:    req.Reason,
	}
	err = s.atomically(ctx, func(ctx context.Context) error {
		if _, err := s.slots.BookSlot(ctx, doctorID.String(), date, rng, a.ID.String()); err != nil {
			return err
		}
		return s.appointments.Create(ctx, a)
	})

	var dup *engine.DuplicateBookingError
	if errors.As(err, &dup) && !s.cfg.StrictDuplicates {
		if existing := s.ownBooking(ctx, dup.AppointmentID, patientID); existing != nil {
			s.logger.Info().Str("appointment_id", existing.ID.String()).Str("patient_id", patientID).
				Msg("repeat booking returned existing appointment")
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", req.DoctorID).
		Str("date", date.String()).Str("range", rng.String()).Msg("appointment booked")
	return a, true, nil
}

func (s *Service) ownBooking(ctx context.Context, appointmentID, patientID string) *Appointment {
	id, err := uuid.Parse(appointmentID)
	if err != nil {
		return nil
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil || a.PatientID != patientID || a.Status != StatusBooked {
		return nil
	}
	return a
}

func (s *Service) GetAppointment(ctx context.Context, sess auth.Session, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(sess, a) {
		return nil, auth.ErrForbidden
	}
	return a, nil
}

func canSee(sess auth.Session, a *Appointment) bool {
	return sess.CanActForPatient(a.PatientID) || sess.CanManageDoctor(a.DoctorID.String())
}

// CancelAppointment cancels a booked appointment and frees its slot. The
// freed time merges with free neighbouring slots.
func (s *Service) CancelAppointment(ctx context.Context, sess auth.Session, id uuid.UUID, reason *string) (*Appointment, error) {
	var out *Appointment
	err := s.atomically(ctx, func(ctx context.Context) error {
		a, err := s.transition(ctx, sess, id, StatusCancelled)
		if err != nil {
			return err
		}
		_, err = s.slots.ReleaseSlot(ctx, a.DoctorID.String(), a.Date, a.Range(), a.ID.String())
		if errors.Is(err, engine.ErrBookingNotFound) {
			s.logger.Warn().Str("appointment_id", a.ID.String()).Msg("no booked slot to release")
		} else if err != nil {
			return err
		}
		a.Status = StatusCancelled
		a.CancellationReason = reason
		if err := s.appointments.UpdateStatus(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return out, nil
}

// MarkNoShow records that the patient did not attend. The slot stays booked.
func (s *Service) MarkNoShow(ctx context.Context, sess auth.Session, id uuid.UUID) (*Appointment, error) {
	return s.close(ctx, sess, id, StatusNoShow)
}

func (s *Service) MarkFulfilled(ctx context.Context, sess auth.Session, id uuid.UUID) (*Appointment, error) {
	return s.close(ctx, sess, id, StatusFulfilled)
}

func (s *Service) close(ctx context.Context, sess auth.Session, id uuid.UUID, status Status) (*Appointment, error) {
	var out *Appointment
	err := s.atomically(ctx, func(ctx context.Context) error {
		a, err := s.transition(ctx, sess, id, status)
		if err != nil {
			return err
		}
		if !sess.CanManageDoctor(a.DoctorID.String()) {
			return auth.ErrForbidden
		}
		a.Status = status
		if err := s.appointments.UpdateStatus(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", id.String()).Str("status", string(status)).Msg("appointment closed")
	return out, nil
}

func (s *Service) transition(ctx context.Context, sess auth.Session, id uuid.UUID, next Status) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(sess, a) {
		return nil, auth.ErrForbidden
	}
	if !a.Status.CanBecome(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, next)
	}
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, sess auth.Session, patientID string, limit, offset int) ([]*Appointment, int, error) {
	if !sess.CanActForPatient(patientID) {
		return nil, 0, auth.ErrForbidden
	}
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, sess auth.Session, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if !sess.CanManageDoctor(doctorID.String()) {
		return nil, 0, auth.ErrForbidden
	}
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}
