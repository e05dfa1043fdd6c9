package availability

// schedule is a doctor's validated records indexed by their natural keys.
type schedule struct {
	doctorID  string
	recurring map[DayOfWeek]Record
	singles   map[Date]Record
}

// index validates the records of doctorID and indexes the active ones.
// Records belonging to other doctors are ignored. inMonth, when non-nil,
// restricts single-date records to that month.
func index(doctorID string, recurring, singles []Record, inMonth *Date) (*schedule, error) {
	if doctorID == "" {
		return nil, validationErrorf("doctor_id is required")
	}
	s := &schedule{
		doctorID:  doctorID,
		recurring: make(map[DayOfWeek]Record),
		singles:   make(map[Date]Record),
	}

	for _, r := range recurring {
		if r.DoctorID != doctorID || !r.IsActive {
			continue
		}
		if r.Kind != KindRecurring {
			return nil, validationErrorf("record %q of kind %s passed as recurring", r.ID, r.Kind)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.recurring[r.DayOfWeek]; dup {
			return nil, validationErrorf("more than one recurring record for %s", r.DayOfWeek)
		}
		s.recurring[r.DayOfWeek] = r
	}

	for _, r := range singles {
		if r.DoctorID != doctorID || !r.IsActive {
			continue
		}
		if r.Kind != KindSingle {
			return nil, validationErrorf("record %q of kind %s passed as single", r.ID, r.Kind)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if inMonth != nil && !r.Date.SameMonth(*inMonth) {
			return nil, validationErrorf("single record for %s is outside %d-%02d", r.Date, inMonth.Year, inMonth.Month)
		}
		if _, dup := s.singles[*r.Date]; dup {
			return nil, validationErrorf("more than one single record for %s", r.Date)
		}
		s.singles[*r.Date] = r
	}
	return s, nil
}

// resolve applies the override precedence for one date:
//  1. a single-date block yields no slots;
//  2. a single-date override replaces the recurring pattern entirely;
//  3. otherwise the recurring pattern for the weekday applies, if any.
//
// ok is false when the date is not offered at all.
func (s *schedule) resolve(d Date, granularity int) (day ResolvedDay, ok bool, err error) {
	day = ResolvedDay{Date: d, DayOfWeek: d.DayOfWeek(), EffectiveSlots: []TimeSlot{}}

	if single, found := s.singles[d]; found {
		if single.IsBlock() {
			day.Source = SourceBlocked
			return day, true, nil
		}
		day.Source = SourceSingleOverride
		day.EffectiveSlots, err = expandSlots(single.TimeSlots, granularity)
		return day, err == nil, err
	}

	rec, found := s.recurring[d.DayOfWeek()]
	if !found || len(rec.TimeSlots) == 0 {
		return day, false, nil
	}
	day.Source = SourceRecurring
	day.EffectiveSlots, err = expandSlots(rec.TimeSlots, granularity)
	return day, err == nil, err
}

// SplitByKind separates records into recurring and single lists.
func SplitByKind(records []Record) (recurring, singles []Record, err error) {
	for _, r := range records {
		switch r.Kind {
		case KindRecurring:
			recurring = append(recurring, r)
		case KindSingle:
			singles = append(singles, r)
		default:
			return nil, nil, validationErrorf("unknown record kind %q", r.Kind)
		}
	}
	return recurring, singles, nil
}

// ResolveMonth returns the effective availability of every offered date in
// the month containing anchor. Dates that are neither overridden nor covered
// by a recurring pattern are absent from the result.
func ResolveMonth(doctorID string, anchor Date, recurring, singles []Record, granularity int) (map[Date]ResolvedDay, error) {
	if anchor.IsZero() {
		return nil, validationErrorf("month anchor is required")
	}
	first := anchor.FirstOfMonth()
	s, err := index(doctorID, recurring, singles, &first)
	if err != nil {
		return nil, err
	}

	out := make(map[Date]ResolvedDay)
	for d := first; d.SameMonth(first); d = d.AddDays(1) {
		day, ok, err := s.resolve(d, granularity)
		if err != nil {
			return nil, err
		}
		if ok {
			out[d] = day
		}
	}
	return out, nil
}

// ResolveDay resolves a single date with the same precedence as ResolveMonth.
// Single records for other dates are validated but otherwise ignored.
func ResolveDay(doctorID string, date Date, recurring, singles []Record, granularity int) (ResolvedDay, bool, error) {
	if date.IsZero() {
		return ResolvedDay{}, false, validationErrorf("date is required")
	}
	s, err := index(doctorID, recurring, singles, nil)
	if err != nil {
		return ResolvedDay{}, false, err
	}
	return s.resolve(date, granularity)
}
