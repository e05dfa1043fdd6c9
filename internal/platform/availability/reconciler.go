package availability

// Change is the outcome of a booking or release.
type Change struct {
	// Records is the doctor's full record set after the change.
	Records []Record
	// Record is the single-date record that was written.
	Record Record
	// Created is true when Record was materialized from a recurring fallback
	// and has never been persisted.
	Created bool
}

// ApplyBooking books booking on date for appointmentID. The slot containing
// the booking is split into an optional free prefix, the booked range and an
// optional free suffix, and the date's effective slots are written to its
// single-date record, materializing one if the date only had a recurring
// pattern.
func ApplyBooking(records []Record, doctorID string, date Date, booking TimeRange, appointmentID string, granularity int) (Change, error) {
	if err := booking.Validate(); err != nil {
		return Change{}, err
	}
	if appointmentID == "" {
		return Change{}, validationErrorf("appointment_id is required")
	}
	recurring, singles, err := SplitByKind(records)
	if err != nil {
		return Change{}, err
	}
	day, ok, err := ResolveDay(doctorID, date, recurring, singles, granularity)
	if err != nil {
		return Change{}, err
	}
	if !ok || day.Source == SourceBlocked {
		return Change{}, conflictErrorf("doctor %s has no availability on %s", doctorID, date)
	}

	target := -1
	for i, s := range day.EffectiveSlots {
		if s.IsBooked && s.Range() == booking {
			return Change{}, &DuplicateBookingError{Date: date, Range: booking, AppointmentID: s.AppointmentID}
		}
		if s.Range().Contains(booking) {
			target = i
			break
		}
	}
	if target < 0 {
		return Change{}, conflictErrorf("%s on %s does not fit within a single slot", booking, date)
	}
	slot := day.EffectiveSlots[target]
	if slot.IsBooked {
		return Change{}, conflictErrorf("%s on %s overlaps booked slot %s", booking, date, slot.Range())
	}

	updated := make([]TimeSlot, 0, len(day.EffectiveSlots)+2)
	updated = append(updated, day.EffectiveSlots[:target]...)
	updated = append(updated, splitAround(slot, booking, appointmentID)...)
	updated = append(updated, day.EffectiveSlots[target+1:]...)

	return writeSingle(records, doctorID, date, updated, day.Source == SourceRecurring)
}

// splitAround books booking inside slot and keeps any free remainder on
// either side. Zero-length fragments are dropped.
func splitAround(slot TimeSlot, booking TimeRange, appointmentID string) []TimeSlot {
	out := make([]TimeSlot, 0, 3)
	if booking.Start > slot.StartTime {
		out = append(out, FreeSlot(TimeRange{Start: slot.StartTime, End: booking.Start}))
	}
	out = append(out, TimeSlot{
		StartTime:     booking.Start,
		EndTime:       booking.End,
		IsBooked:      true,
		AppointmentID: appointmentID,
	})
	if booking.End < slot.EndTime {
		out = append(out, FreeSlot(TimeRange{Start: booking.End, End: slot.EndTime}))
	}
	return out
}

// ReleaseBooking frees the slots booked by appointmentID on date. When
// appointmentID is empty the booked slot matching booking exactly is freed.
// The freed slots are merged with touching free neighbours.
func ReleaseBooking(records []Record, doctorID string, date Date, booking TimeRange, appointmentID string) (Change, error) {
	if appointmentID == "" {
		if err := booking.Validate(); err != nil {
			return Change{}, err
		}
	}
	_, singles, err := SplitByKind(records)
	if err != nil {
		return Change{}, err
	}

	var single *Record
	for i := range singles {
		r := singles[i]
		if r.DoctorID == doctorID && r.IsActive && r.Date != nil && *r.Date == date {
			single = &r
			break
		}
	}
	if single == nil {
		return Change{}, notFoundError(doctorID, date, booking, appointmentID)
	}

	slots := append([]TimeSlot(nil), single.TimeSlots...)
	SortSlots(slots)
	released := make([]bool, len(slots))
	found := false
	for i, s := range slots {
		if !s.IsBooked {
			continue
		}
		match := s.AppointmentID == appointmentID
		if appointmentID == "" {
			match = s.Range() == booking
		}
		if match {
			slots[i] = FreeSlot(s.Range())
			released[i] = true
			found = true
		}
	}
	if !found {
		return Change{}, notFoundError(doctorID, date, booking, appointmentID)
	}

	return writeSingle(records, doctorID, date, coalesce(slots, released), false)
}

// coalesce merges each run of touching free slots that contains a released
// slot into one slot. Other slots are kept as they are.
func coalesce(slots []TimeSlot, released []bool) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for i := 0; i < len(slots); {
		if slots[i].IsBooked {
			out = append(out, slots[i])
			i++
			continue
		}
		j := i
		touched := released[i]
		for j+1 < len(slots) && !slots[j+1].IsBooked && slots[j+1].StartTime == slots[j].EndTime {
			j++
			touched = touched || released[j]
		}
		if touched {
			out = append(out, FreeSlot(TimeRange{Start: slots[i].StartTime, End: slots[j].EndTime}))
		} else {
			out = append(out, slots[i:j+1]...)
		}
		i = j + 1
	}
	return out
}

// writeSingle stores slots in the date's single-date record, creating one if
// needed, and returns the updated record set.
func writeSingle(records []Record, doctorID string, date Date, slots []TimeSlot, materialize bool) (Change, error) {
	SortSlots(slots)
	if err := ValidateSlots(slots); err != nil {
		return Change{}, err
	}

	out := make([]Record, 0, len(records)+1)
	var written *Record
	for _, r := range records {
		c := r.Clone()
		if written == nil && c.Kind == KindSingle && c.DoctorID == doctorID && c.IsActive && c.Date != nil && *c.Date == date {
			c.TimeSlots = slots
			written = &c
		}
		out = append(out, c)
	}
	if written != nil {
		return Change{Records: out, Record: *written}, nil
	}
	if !materialize {
		return Change{}, validationErrorf("no single-date record for %s", date)
	}
	rec := NewSingle(doctorID, date, slots)
	out = append(out, rec)
	return Change{Records: out, Record: rec, Created: true}, nil
}

func notFoundError(doctorID string, date Date, booking TimeRange, appointmentID string) error {
	if appointmentID != "" {
		return wrapf(ErrBookingNotFound, "appointment %s on %s for doctor %s", appointmentID, date, doctorID)
	}
	return wrapf(ErrBookingNotFound, "%s on %s for doctor %s", booking, date, doctorID)
}
