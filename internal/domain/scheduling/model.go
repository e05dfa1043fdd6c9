package scheduling

import (
	"time"

	"github.com/google/uuid"

	engine "github.com/medportal/portal/internal/platform/availability"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "noshow"
	StatusFulfilled Status = "fulfilled"
)

// CanBecome reports whether an appointment in status s may move to next.
// Only booked appointments change status; the others are final.
func (s Status) CanBecome(next Status) bool {
	if s != StatusBooked {
		return false
	}
	switch next {
	case StatusCancelled, StatusNoShow, StatusFulfilled:
		return true
	}
	return false
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	DoctorID           uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	PatientID          string       `db:"patient_id" json:"patient_id"`
	Date               engine.Date  `db:"date" json:"date"`
	StartTime          engine.Clock `db:"start_time" json:"start_time"`
	EndTime            engine.Clock `db:"end_time" json:"end_time"`
	Status             Status       `db:"status" json:"status"`
	Reason             *string      `db:"reason" json:"reason,omitempty"`
	CancellationReason *string      `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	VersionID          int          `db:"version_id" json:"version_id"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) Range() engine.TimeRange {
	return engine.TimeRange{Start: a.StartTime, End: a.EndTime}
}

type BookRequest struct {
	DoctorID  string  `json:"doctor_id" validate:"required,uuid"`
	PatientID string  `json:"patient_id" validate:"omitempty,max=128"`
	Date      string  `json:"date" validate:"required,isodate"`
	StartTime string  `json:"start_time" validate:"required,hhmm"`
	EndTime   string  `json:"end_time" validate:"required,hhmm"`
	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type CancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
