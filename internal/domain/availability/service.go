package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/platform/auth"
	engine "github.com/medportal/portal/internal/platform/availability"
	"github.com/medportal/portal/internal/platform/db"
	"github.com/medportal/portal/internal/platform/metrics"
)

type Config struct {
	Granularity  int
	StoreTimeout time.Duration
	Location     *time.Location
}

type Service struct {
	records RecordRepository
	doctors DoctorDirectory
	tx      Transactor
	metrics *metrics.Recorder
	logger  zerolog.Logger
	cfg     Config
	now     func() time.Time
}

func NewService(records RecordRepository, doctors DoctorDirectory, tx Transactor, rec *metrics.Recorder, logger zerolog.Logger, cfg Config) *Service {
	if cfg.Granularity <= 0 {
		cfg.Granularity = engine.DefaultGranularity
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		records: records,
		doctors: doctors,
		tx:      tx,
		metrics: rec,
		logger:  logger.With().Str("component", "availability").Logger(),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Today is the current date in the clinic's time zone.
func (s *Service) Today() engine.Date {
	return engine.DateOf(s.now().In(s.cfg.Location))
}

// store runs fn in a transaction under the store timeout, retrying once if
// the attempt timed out. Inside a caller's transaction fn runs once as is;
// the caller owns the timeout and retry.
func (s *Service) store(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return db.RetryOnTimeout(ctx, s.cfg.StoreTimeout, func(ctx context.Context) error {
		return s.tx.InTx(ctx, fn)
	})
}

// -- Reads --

func (s *Service) ListRecords(ctx context.Context, doctorID string) ([]engine.Record, error) {
	records, err := s.records.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []engine.Record{}
	}
	return records, nil
}

// MonthView is a month of resolved days in date order. Dates the doctor
// does not offer are absent.
type MonthView struct {
	DoctorID string               `json:"doctor_id"`
	Month    string               `json:"month"`
	Days     []engine.ResolvedDay `json:"days"`
}

func (s *Service) ResolveMonth(ctx context.Context, doctorID string, anchor engine.Date) (MonthView, error) {
	start := time.Now()
	defer s.metrics.ObserveResolve("month", start)

	records, err := s.records.ListForMonth(ctx, doctorID, anchor)
	if err != nil {
		return MonthView{}, err
	}
	recurring, singles, err := engine.SplitByKind(records)
	if err != nil {
		return MonthView{}, err
	}
	month, err := engine.ResolveMonth(doctorID, anchor, recurring, singles, s.cfg.Granularity)
	if err != nil {
		return MonthView{}, err
	}

	days := make([]engine.ResolvedDay, 0, len(month))
	for _, d := range month {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return MonthView{
		DoctorID: doctorID,
		Month:    anchor.FirstOfMonth().String()[:7],
		Days:     days,
	}, nil
}

// ResolveDay returns the resolved date; ok is false when the doctor does not
// offer it at all.
func (s *Service) ResolveDay(ctx context.Context, doctorID string, date engine.Date) (engine.ResolvedDay, bool, error) {
	start := time.Now()
	defer s.metrics.ObserveResolve("day", start)

	records, err := s.records.ListForDate(ctx, []string{doctorID}, date)
	if err != nil {
		return engine.ResolvedDay{}, false, err
	}
	recurring, singles, err := engine.SplitByKind(records)
	if err != nil {
		return engine.ResolvedDay{}, false, err
	}
	return engine.ResolveDay(doctorID, date, recurring, singles, s.cfg.Granularity)
}

// -- Schedule edits --

// WeekdaySlots is one entry of a full weekly schedule.
type WeekdaySlots struct {
	DayOfWeek engine.DayOfWeek
	TimeSlots []engine.TimeSlot
}

// SaveWeeklySchedule replaces the doctor's recurring schedule. days must
// name every weekday exactly once; an empty list closes that weekday.
func (s *Service) SaveWeeklySchedule(ctx context.Context, sess auth.Session, doctorID string, days []WeekdaySlots) ([]engine.Record, error) {
	if !sess.CanManageDoctor(doctorID) {
		return nil, auth.ErrForbidden
	}
	if len(days) != len(engine.Week) {
		return nil, fmt.Errorf("%w: weekly schedule needs %d entries, got %d", engine.ErrValidation, len(engine.Week), len(days))
	}

	byDay := make(map[engine.DayOfWeek]engine.Record, len(days))
	for _, d := range days {
		if !d.DayOfWeek.Valid() {
			return nil, fmt.Errorf("%w: invalid day_of_week %q", engine.ErrValidation, d.DayOfWeek)
		}
		if _, dup := byDay[d.DayOfWeek]; dup {
			return nil, fmt.Errorf("%w: %s listed twice", engine.ErrValidation, d.DayOfWeek)
		}
		rec := engine.NewRecurring(doctorID, d.DayOfWeek, freeCopy(d.TimeSlots))
		engine.SortSlots(rec.TimeSlots)
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		byDay[d.DayOfWeek] = rec
	}

	ordered := make([]engine.Record, 0, len(engine.Week))
	for _, day := range engine.Week {
		ordered = append(ordered, byDay[day])
	}

	err := s.store(ctx, func(ctx context.Context) error {
		out := make([]engine.Record, len(ordered))
		copy(out, ordered)
		if err := s.records.ReplaceRecurring(ctx, doctorID, out); err != nil {
			return err
		}
		ordered = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", doctorID).Str("user_id", sess.UserID).Msg("weekly schedule replaced")
	return ordered, nil
}

// SaveDateOverride replaces the doctor's availability on one date. An empty,
// non-nil slots list blocks the date; nil is rejected. Booked slots already
// on the date are kept: omitted ones are carried over and a submitted slot
// may only touch a booked range by repeating it exactly.
func (s *Service) SaveDateOverride(ctx context.Context, sess auth.Session, doctorID string, date engine.Date, slots []engine.TimeSlot) (engine.Record, error) {
	if !sess.CanManageDoctor(doctorID) {
		return engine.Record{}, auth.ErrForbidden
	}
	if slots == nil {
		return engine.Record{}, fmt.Errorf("%w: time_slots is required; send [] to block the date", engine.ErrValidation)
	}
	if date.IsZero() {
		return engine.Record{}, fmt.Errorf("%w: date is required", engine.ErrValidation)
	}

	var saved engine.Record
	err := s.store(ctx, func(ctx context.Context) error {
		existing, err := s.activeSingle(ctx, doctorID, date)
		if err != nil {
			return err
		}
		rec := engine.NewSingle(doctorID, date, nil)
		if existing != nil {
			rec.ID = existing.ID
			rec.VersionID = existing.VersionID
		}
		rec.TimeSlots, err = mergeBooked(existing, freeCopy(slots))
		if err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		if err := s.records.SaveSingle(ctx, &rec); err != nil {
			return staleAsConflict(err)
		}
		saved = rec
		return nil
	})
	if err != nil {
		return engine.Record{}, err
	}
	s.logger.Info().Str("doctor_id", doctorID).Str("date", date.String()).
		Bool("blocked", saved.IsBlock()).Msg("date override saved")
	return saved, nil
}

// RemoveDateOverride deactivates the date's override so the weekly schedule
// applies again. Dates with bookings cannot be reverted.
func (s *Service) RemoveDateOverride(ctx context.Context, sess auth.Session, doctorID string, date engine.Date) error {
	if !sess.CanManageDoctor(doctorID) {
		return auth.ErrForbidden
	}
	err := s.store(ctx, func(ctx context.Context) error {
		existing, err := s.activeSingle(ctx, doctorID, date)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: no override on %s", ErrRecordNotFound, date)
		}
		if existing.HasBookings() {
			return fmt.Errorf("%w: %s has booked slots; cancel them first", engine.ErrValidation, date)
		}
		existing.IsActive = false
		return staleAsConflict(s.records.SaveSingle(ctx, existing))
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", doctorID).Str("date", date.String()).Msg("date override removed")
	return nil
}

func (s *Service) activeSingle(ctx context.Context, doctorID string, date engine.Date) (*engine.Record, error) {
	records, err := s.records.ListForDate(ctx, []string{doctorID}, date)
	if err != nil {
		return nil, err
	}
	for i := range records {
		r := records[i]
		if r.Kind == engine.KindSingle && r.DoctorID == doctorID && r.IsActive && r.Date != nil && *r.Date == date {
			return &r, nil
		}
	}
	return nil, nil
}

// freeCopy drops any booking state a client may have sent.
func freeCopy(slots []engine.TimeSlot) []engine.TimeSlot {
	out := make([]engine.TimeSlot, 0, len(slots))
	for _, sl := range slots {
		out = append(out, engine.FreeSlot(sl.Range()))
	}
	return out
}

func mergeBooked(existing *engine.Record, submitted []engine.TimeSlot) ([]engine.TimeSlot, error) {
	if existing == nil {
		return submitted, nil
	}
	var booked []engine.TimeSlot
	for _, b := range existing.TimeSlots {
		if b.IsBooked {
			booked = append(booked, b)
		}
	}
	if len(booked) > 0 && len(submitted) == 0 {
		return nil, fmt.Errorf("%w: cannot block a date with %d booked slot(s)", engine.ErrValidation, len(booked))
	}

	out := make([]engine.TimeSlot, 0, len(submitted)+len(booked))
	for _, sl := range submitted {
		keep := true
		for _, b := range booked {
			if !sl.Range().Overlaps(b.Range()) {
				continue
			}
			if sl.Range() != b.Range() {
				return nil, fmt.Errorf("%w: %s overlaps booked slot %s", engine.ErrValidation, sl.Range(), b.Range())
			}
			keep = false
		}
		if keep {
			out = append(out, sl)
		}
	}
	out = append(out, booked...)
	engine.SortSlots(out)
	return out, nil
}

// -- Booking --

// BookSlot reserves bookingRange on date for appointmentID and persists the
// split. A booking that finds its own appointment already in place succeeds,
// which makes retries safe.
func (s *Service) BookSlot(ctx context.Context, doctorID string, date engine.Date, bookingRange engine.TimeRange, appointmentID string) (engine.Record, error) {
	log := s.logger.With().Str("doctor_id", doctorID).Str("date", date.String()).
		Str("range", bookingRange.String()).Str("appointment_id", appointmentID).Logger()

	var written engine.Record
	err := s.store(ctx, func(ctx context.Context) error {
		records, err := s.records.ListForDate(ctx, []string{doctorID}, date)
		if err != nil {
			return err
		}
		change, err := engine.ApplyBooking(records, doctorID, date, bookingRange, appointmentID, s.cfg.Granularity)
		var dup *engine.DuplicateBookingError
		if errors.As(err, &dup) && dup.AppointmentID == appointmentID {
			for _, r := range records {
				if r.Kind == engine.KindSingle && r.Date != nil && *r.Date == date {
					written = r
				}
			}
			return nil
		}
		if err != nil {
			return err
		}
		rec := change.Record
		if err := s.records.SaveSingle(ctx, &rec); err != nil {
			return staleAsConflict(err)
		}
		written = rec
		return nil
	})

	outcome := outcomeOf(err)
	s.metrics.Booking(outcome)
	if err != nil {
		log.Warn().Err(err).Str("outcome", outcome).Msg("booking rejected")
		return engine.Record{}, err
	}
	log.Info().Msg("slot booked")
	return written, nil
}

// ReleaseSlot frees the slots held by appointmentID (or the exact range when
// appointmentID is empty) and merges the freed time with its free neighbours.
func (s *Service) ReleaseSlot(ctx context.Context, doctorID string, date engine.Date, bookingRange engine.TimeRange, appointmentID string) (engine.Record, error) {
	var written engine.Record
	err := s.store(ctx, func(ctx context.Context) error {
		records, err := s.records.ListForDate(ctx, []string{doctorID}, date)
		if err != nil {
			return err
		}
		change, err := engine.ReleaseBooking(records, doctorID, date, bookingRange, appointmentID)
		if err != nil {
			return err
		}
		rec := change.Record
		if err := s.records.SaveSingle(ctx, &rec); err != nil {
			return staleAsConflict(err)
		}
		written = rec
		return nil
	})

	outcome := outcomeOf(err)
	s.metrics.Release(outcome)
	if err != nil {
		s.logger.Warn().Err(err).Str("doctor_id", doctorID).Str("date", date.String()).
			Str("appointment_id", appointmentID).Msg("release rejected")
		return engine.Record{}, err
	}
	s.logger.Info().Str("doctor_id", doctorID).Str("date", date.String()).
		Str("appointment_id", appointmentID).Msg("slot released")
	return written, nil
}

func staleAsConflict(err error) error {
	if errors.Is(err, ErrStaleRecord) {
		return fmt.Errorf("%w: schedule changed while booking, re-fetch availability", engine.ErrSlotConflict)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, engine.ErrDuplicateBooking):
		return metrics.OutcomeDuplicate
	case errors.Is(err, engine.ErrSlotConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, engine.ErrBookingNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, engine.ErrValidation):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

// -- Search --

// Search finds doctors with free time matching criteria. A name-only search
// looks at today in the clinic's time zone.
func (s *Service) Search(ctx context.Context, criteria engine.Criteria) ([]engine.Match, error) {
	if criteria.IsEmpty() {
		return nil, engine.ErrEmptyQuery
	}
	start := time.Now()
	defer s.metrics.ObserveResolve("search", start)

	today := s.Today()
	date := today
	if criteria.Date != nil {
		date = *criteria.Date
	}

	doctors, err := s.doctors.ActiveDoctors(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(doctors))
	for _, d := range doctors {
		ids = append(ids, d.ID)
	}
	records, err := s.records.ListForDate(ctx, ids, date)
	if err != nil {
		return nil, err
	}

	byDoctor := make(map[string][]engine.Record, len(doctors))
	for _, r := range records {
		byDoctor[r.DoctorID] = append(byDoctor[r.DoctorID], r)
	}
	schedules := make([]engine.DoctorSchedule, 0, len(doctors))
	for _, d := range doctors {
		schedules = append(schedules, engine.DoctorSchedule{Doctor: d, Records: byDoctor[d.ID]})
	}

	matches, err := engine.Search(criteria, schedules, today, s.cfg.Granularity)
	if err != nil {
		return nil, err
	}
	s.metrics.Search(facetOf(criteria), len(matches))
	return matches, nil
}

func facetOf(c engine.Criteria) string {
	hasName := strings.TrimSpace(c.NamePrefix) != ""
	switch {
	case c.Date != nil && hasName:
		return "date_and_name"
	case c.Date != nil:
		return "date"
	default:
		return "name"
	}
}

// -- Maintenance --

// PurgeInactiveOverrides deletes deactivated date overrides last changed
// before the cutoff.
func (s *Service) PurgeInactiveOverrides(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.records.PurgeInactiveBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	s.metrics.Purged(n)
	return n, nil
}
