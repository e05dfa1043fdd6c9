package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind tags an availability record as a weekly pattern or a date override.
type Kind string

const (
	KindRecurring Kind = "RECURRING"
	KindSingle    Kind = "SINGLE"
)

// Source describes where a resolved day's slots came from.
type Source string

const (
	SourceRecurring      Source = "FROM_RECURRING"
	SourceSingleOverride Source = "FROM_SINGLE_OVERRIDE"
	SourceBlocked        Source = "BLOCKED"
)

// DayOfWeek is the wire form of a weekday.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// Week lists the days in Monday-first order.
var Week = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdays = map[DayOfWeek]time.Weekday{
	Monday: time.Monday, Tuesday: time.Tuesday, Wednesday: time.Wednesday,
	Thursday: time.Thursday, Friday: time.Friday, Saturday: time.Saturday, Sunday: time.Sunday,
}

// ParseDayOfWeek accepts the full English day name in any case.
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := weekdays[d]; !ok {
		return "", validationErrorf("invalid day of week %q", s)
	}
	return d, nil
}

// DayOf maps a time.Weekday to its DayOfWeek.
func DayOf(wd time.Weekday) DayOfWeek {
	for d, w := range weekdays {
		if w == wd {
			return d
		}
	}
	return ""
}

// Valid reports whether d is one of the seven known days.
func (d DayOfWeek) Valid() bool {
	_, ok := weekdays[d]
	return ok
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, validationErrorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// ParseMonth parses a YYYY-MM string and returns the first day of that month.
func ParseMonth(s string) (Date, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Date{}, validationErrorf("invalid month %q: expected YYYY-MM", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return d.Time().Format(dateLayout) }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Date) DayOfWeek() DayOfWeek { return DayOf(d.Weekday()) }

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

// SameMonth reports whether d and o fall in the same calendar month.
func (d Date) SameMonth(o Date) bool { return d.Year == o.Year && d.Month == o.Month }

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date { return Date{Year: d.Year, Month: d.Month, Day: 1} }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

// ParseClock parses a 24-hour HH:MM string.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, validationErrorf("invalid time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil || hour < 0 || hour > 23 {
		return 0, validationErrorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil || minute < 0 || minute > 59 {
		return 0, validationErrorf("invalid minute in %q", s)
	}
	return Clock(hour*60 + minute), nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60) }

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is a half-open interval [Start, End) within one day.
type TimeRange struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

// NewTimeRange parses and validates a pair of HH:MM strings.
func NewTimeRange(start, end string) (TimeRange, error) {
	s, err := ParseClock(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return TimeRange{}, err
	}
	r := TimeRange{Start: s, End: e}
	return r, r.Validate()
}

func (r TimeRange) Validate() error {
	if r.Start >= r.End {
		return validationErrorf("time range %s-%s is not chronological", r.Start, r.End)
	}
	return nil
}

func (r TimeRange) Minutes() int { return int(r.End - r.Start) }

// Contains reports whether o lies entirely within r.
func (r TimeRange) Contains(o TimeRange) bool { return r.Start <= o.Start && o.End <= r.End }

// Overlaps treats ranges as half-open, so touching ranges do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool { return r.Start < o.End && o.Start < r.End }

func (r TimeRange) String() string { return r.Start.String() + "-" + r.End.String() }

// TimeSlot is a range of time offered for booking.
type TimeSlot struct {
	StartTime     Clock  `json:"start_time"`
	EndTime       Clock  `json:"end_time"`
	IsBooked      bool   `json:"is_booked"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

func (s TimeSlot) Range() TimeRange { return TimeRange{Start: s.StartTime, End: s.EndTime} }

// FreeSlot builds an unbooked slot for r.
func FreeSlot(r TimeRange) TimeSlot { return TimeSlot{StartTime: r.Start, EndTime: r.End} }

// Validate checks the range and the booked/appointment pairing.
func (s TimeSlot) Validate() error {
	if err := s.Range().Validate(); err != nil {
		return err
	}
	if !s.IsBooked && s.AppointmentID != "" {
		return validationErrorf("slot %s has an appointment but is not booked", s.Range())
	}
	return nil
}

// SortSlots orders slots by start time in place.
func SortSlots(slots []TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
}

// ValidateSlots checks each slot and rejects overlaps within the list.
func ValidateSlots(slots []TimeSlot) error {
	sorted := append([]TimeSlot(nil), slots...)
	SortSlots(sorted)
	for i, s := range sorted {
		if err := s.Validate(); err != nil {
			return err
		}
		if i > 0 && sorted[i-1].Range().Overlaps(s.Range()) {
			return validationErrorf("slots %s and %s overlap", sorted[i-1].Range(), s.Range())
		}
	}
	return nil
}

// Record is a doctor's availability for either a weekday or a specific date.
// DayOfWeek is set only for KindRecurring and Date only for KindSingle.
type Record struct {
	ID        string     `json:"id,omitempty"`
	DoctorID  string     `json:"doctor_id"`
	Kind      Kind       `json:"kind"`
	DayOfWeek DayOfWeek  `json:"day_of_week,omitempty"`
	Date      *Date      `json:"date,omitempty"`
	TimeSlots []TimeSlot `json:"time_slots"`
	IsActive  bool       `json:"is_active"`
	VersionID int        `json:"version_id"`
}

// NewRecurring builds an active weekly record.
func NewRecurring(doctorID string, day DayOfWeek, slots []TimeSlot) Record {
	return Record{DoctorID: doctorID, Kind: KindRecurring, DayOfWeek: day, TimeSlots: slots, IsActive: true}
}

// NewSingle builds an active date override. Empty slots block the date.
func NewSingle(doctorID string, date Date, slots []TimeSlot) Record {
	d := date
	if slots == nil {
		slots = []TimeSlot{}
	}
	return Record{DoctorID: doctorID, Kind: KindSingle, Date: &d, TimeSlots: slots, IsActive: true}
}

// IsBlock reports whether r is a single-date override with no slots.
func (r Record) IsBlock() bool { return r.Kind == KindSingle && len(r.TimeSlots) == 0 }

// HasBookings reports whether any slot of r is booked.
func (r Record) HasBookings() bool {
	for _, s := range r.TimeSlots {
		if s.IsBooked {
			return true
		}
	}
	return false
}

// Key returns the natural key of the record within its doctor's schedule.
func (r Record) Key() (string, error) {
	switch r.Kind {
	case KindRecurring:
		if !r.DayOfWeek.Valid() {
			return "", validationErrorf("recurring record has invalid day of week %q", r.DayOfWeek)
		}
		if r.Date != nil {
			return "", validationErrorf("recurring record for %s must not carry a date", r.DayOfWeek)
		}
		return string(r.Kind) + ":" + string(r.DayOfWeek), nil
	case KindSingle:
		if r.Date == nil || r.Date.IsZero() {
			return "", validationErrorf("single record is missing its date")
		}
		if r.DayOfWeek != "" {
			return "", validationErrorf("single record for %s must not carry a day of week", r.Date)
		}
		return string(r.Kind) + ":" + r.Date.String(), nil
	default:
		return "", validationErrorf("unknown record kind %q", r.Kind)
	}
}

// Validate checks the record shape and its slots.
func (r Record) Validate() error {
	if r.DoctorID == "" {
		return validationErrorf("doctor_id is required")
	}
	if _, err := r.Key(); err != nil {
		return err
	}
	return ValidateSlots(r.TimeSlots)
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	if r.Date != nil {
		d := *r.Date
		c.Date = &d
	}
	if r.TimeSlots != nil {
		c.TimeSlots = append([]TimeSlot{}, r.TimeSlots...)
	}
	return c
}

// MarshalJSON always emits time_slots as an array so that a block is never
// confused with an omitted list.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	a := alias(r)
	if a.TimeSlots == nil {
		a.TimeSlots = []TimeSlot{}
	}
	return json.Marshal(a)
}

// ResolvedDay is the availability in force for one date.
type ResolvedDay struct {
	Date           Date       `json:"date"`
	DayOfWeek      DayOfWeek  `json:"day_of_week"`
	EffectiveSlots []TimeSlot `json:"effective_slots"`
	Source         Source     `json:"source"`
}

// FreeSlots returns the unbooked effective slots.
func (d ResolvedDay) FreeSlots() []TimeSlot {
	free := []TimeSlot{}
	for _, s := range d.EffectiveSlots {
		if !s.IsBooked {
			free = append(free, s)
		}
	}
	return free
}
