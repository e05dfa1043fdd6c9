package availability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(t *testing.T, start, end string) TimeRange {
	t.Helper()
	r, err := NewTimeRange(start, end)
	require.NoError(t, err)
	return r
}

func TestApplyBooking_SplitKeepsBothRemainders(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewSingle(doc, d, []TimeSlot{slot("09:00", "12:00")})}

	// Granularity wider than the slot keeps 09:00-12:00 whole.
	change, err := ApplyBooking(records, doc, d, rng(t, "10:00", "11:00"), "appt-1", 180)
	require.NoError(t, err)
	assert.False(t, change.Created)
	assert.Equal(t, []TimeSlot{
		slot("09:00", "10:00"),
		booked("10:00", "11:00", "appt-1"),
		slot("11:00", "12:00"),
	}, change.Record.TimeSlots)
}

func TestApplyBooking_TwiceIsDuplicate(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "12:00")})}

	first, err := ApplyBooking(records, doc, d, rng(t, "10:00", "11:00"), "appt-1", 60)
	require.NoError(t, err)

	_, err = ApplyBooking(first.Records, doc, d, rng(t, "10:00", "11:00"), "appt-2", 60)
	require.True(t, errors.Is(err, ErrDuplicateBooking))
	var dup *DuplicateBookingError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "appt-1", dup.AppointmentID)

	bookedCount := 0
	for _, s := range first.Record.TimeSlots {
		if s.IsBooked {
			bookedCount++
		}
	}
	assert.Equal(t, 1, bookedCount)
}

func TestApplyBooking_Conflicts(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{
		NewSingle(doc, d, []TimeSlot{slot("09:00", "10:00"), booked("10:00", "12:00", "appt-9"), slot("13:00", "14:00")}),
	}

	cases := []struct {
		name       string
		start, end string
	}{
		{"spans two slots", "09:30", "10:30"},
		{"inside booked", "10:30", "11:00"},
		{"outside hours", "15:00", "16:00"},
		{"gap between slots", "12:00", "13:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyBooking(records, doc, d, rng(t, tc.start, tc.end), "appt-1", 60)
			assert.True(t, errors.Is(err, ErrSlotConflict), "got %v", err)
		})
	}
}

func TestApplyBooking_BlockedDate(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{
		NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "17:00")}),
		NewSingle(doc, d, nil),
	}
	_, err := ApplyBooking(records, doc, d, rng(t, "09:00", "10:00"), "appt-1", 60)
	assert.True(t, errors.Is(err, ErrSlotConflict))
}

func TestApplyBooking_Validation(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "17:00")})}

	_, err := ApplyBooking(records, doc, d, TimeRange{Start: MustClock("10:00"), End: MustClock("09:00")}, "appt-1", 60)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = ApplyBooking(records, doc, d, rng(t, "09:00", "10:00"), "", 60)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestApplyBooking_EndToEnd(t *testing.T) {
	// 2024-06-11 is a Tuesday.
	d := mustDate(t, "2024-06-11")
	records := []Record{NewRecurring(doc, Tuesday, []TimeSlot{slot("13:00", "15:00")})}

	recurring, singles, err := SplitByKind(records)
	require.NoError(t, err)
	month, err := ResolveMonth(doc, d, recurring, singles, 60)
	require.NoError(t, err)
	assert.Equal(t, SourceRecurring, month[d].Source)
	assert.Equal(t, []TimeSlot{slot("13:00", "14:00"), slot("14:00", "15:00")}, month[d].EffectiveSlots)

	change, err := ApplyBooking(records, doc, d, rng(t, "13:00", "14:00"), "appt-1", 60)
	require.NoError(t, err)
	assert.True(t, change.Created)
	assert.Equal(t, KindSingle, change.Record.Kind)
	assert.Equal(t, d, *change.Record.Date)
	assert.Equal(t, []TimeSlot{booked("13:00", "14:00", "appt-1"), slot("14:00", "15:00")}, change.Record.TimeSlots)
	require.Len(t, change.Records, 2)

	recurring, singles, err = SplitByKind(change.Records)
	require.NoError(t, err)
	month, err = ResolveMonth(doc, d, recurring, singles, 60)
	require.NoError(t, err)
	assert.Equal(t, SourceSingleOverride, month[d].Source)
	assert.Equal(t, change.Record.TimeSlots, month[d].EffectiveSlots)

	// The recurring pattern is untouched for the following Tuesday.
	next := d.AddDays(7)
	assert.Equal(t, SourceRecurring, month[next].Source)
}

func TestApplyBooking_DoesNotMutateInput(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewSingle(doc, d, []TimeSlot{slot("09:00", "10:00")})}

	_, err := ApplyBooking(records, doc, d, rng(t, "09:00", "10:00"), "appt-1", 60)
	require.NoError(t, err)
	assert.False(t, records[0].TimeSlots[0].IsBooked)
}

func TestReleaseBooking_CoalescesNeighbours(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewSingle(doc, d, []TimeSlot{
		slot("09:00", "10:00"),
		booked("10:00", "11:00", "appt-1"),
		slot("11:00", "12:00"),
	})}

	change, err := ReleaseBooking(records, doc, d, TimeRange{}, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, []TimeSlot{slot("09:00", "12:00")}, change.Record.TimeSlots)
}

func TestReleaseBooking_KeepsUnrelatedRuns(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewSingle(doc, d, []TimeSlot{
		slot("08:00", "09:00"),
		slot("09:00", "10:00"),
		booked("10:00", "11:00", "appt-2"),
		booked("11:00", "12:00", "appt-1"),
		slot("12:00", "13:00"),
	})}

	change, err := ReleaseBooking(records, doc, d, rng(t, "11:00", "12:00"), "")
	require.NoError(t, err)
	assert.Equal(t, []TimeSlot{
		slot("08:00", "09:00"),
		slot("09:00", "10:00"),
		booked("10:00", "11:00", "appt-2"),
		slot("11:00", "13:00"),
	}, change.Record.TimeSlots)
}

func TestReleaseBooking_AfterApplyRestoresFreeTime(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{NewSingle(doc, d, []TimeSlot{slot("09:00", "12:00")})}

	booking, err := ApplyBooking(records, doc, d, rng(t, "10:00", "11:00"), "appt-1", 180)
	require.NoError(t, err)
	release, err := ReleaseBooking(booking.Records, doc, d, TimeRange{}, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, []TimeSlot{slot("09:00", "12:00")}, release.Record.TimeSlots)
}

func TestReleaseBooking_NotFound(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	records := []Record{
		NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "12:00")}),
		NewSingle(doc, d, []TimeSlot{booked("09:00", "10:00", "appt-1")}),
	}

	_, err := ReleaseBooking(records, doc, d, TimeRange{}, "appt-404")
	assert.True(t, errors.Is(err, ErrBookingNotFound))

	_, err = ReleaseBooking(records, doc, d.AddDays(7), TimeRange{}, "appt-1")
	assert.True(t, errors.Is(err, ErrBookingNotFound))
}
