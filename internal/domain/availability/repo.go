package availability

import (
	"context"
	"errors"
	"time"

	engine "github.com/medportal/portal/internal/platform/availability"
)

var (
	// ErrStaleRecord means the record changed after it was read.
	ErrStaleRecord    = errors.New("availability record changed concurrently")
	ErrRecordNotFound = errors.New("availability record not found")
)

// RecordRepository is the Schedule Store. Every list method returns active
// records only.
type RecordRepository interface {
	ListByDoctor(ctx context.Context, doctorID string) ([]engine.Record, error)
	// ListForMonth returns the doctor's recurring records and the single
	// records dated in the anchor's month.
	ListForMonth(ctx context.Context, doctorID string, anchor engine.Date) ([]engine.Record, error)
	// ListForDate returns, for each doctor, the recurring record for the
	// date's weekday and the single record for the date.
	ListForDate(ctx context.Context, doctorIDs []string, date engine.Date) ([]engine.Record, error)
	// ReplaceRecurring upserts one recurring record per weekday, filling in
	// ID and VersionID.
	ReplaceRecurring(ctx context.Context, doctorID string, days []engine.Record) error
	// SaveSingle inserts rec when ID is empty, or updates it when its
	// VersionID still matches. A lost race returns ErrStaleRecord.
	SaveSingle(ctx context.Context, rec *engine.Record) error
	PurgeInactiveBefore(ctx context.Context, before time.Time) (int64, error)
}

// DoctorDirectory lists the doctors search runs over.
type DoctorDirectory interface {
	ActiveDoctors(ctx context.Context) ([]engine.Doctor, error)
}

// Transactor runs fn inside a store transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
