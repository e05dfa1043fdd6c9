package availability

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = "doc-1"

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestResolveMonth_BlockBeatsRecurring(t *testing.T) {
	// 2024-06-10 is a Monday.
	blockedDay := mustDate(t, "2024-06-10")
	recurring := []Record{NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "17:00")})}
	singles := []Record{NewSingle(doc, blockedDay, []TimeSlot{})}

	month, err := ResolveMonth(doc, blockedDay, recurring, singles, 60)
	require.NoError(t, err)

	day, ok := month[blockedDay]
	require.True(t, ok)
	assert.Equal(t, SourceBlocked, day.Source)
	assert.Empty(t, day.EffectiveSlots)

	other := mustDate(t, "2024-06-17")
	require.Contains(t, month, other)
	assert.Equal(t, SourceRecurring, month[other].Source)
	assert.Len(t, month[other].EffectiveSlots, 8)
}

func TestResolveMonth_OverrideReplacesRecurring(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	recurring := []Record{NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "12:00")})}
	singles := []Record{NewSingle(doc, d, []TimeSlot{slot("14:00", "16:00")})}

	month, err := ResolveMonth(doc, d, recurring, singles, 60)
	require.NoError(t, err)

	day := month[d]
	assert.Equal(t, SourceSingleOverride, day.Source)
	assert.Equal(t, []TimeSlot{slot("14:00", "15:00"), slot("15:00", "16:00")}, day.EffectiveSlots)
}

func TestResolveMonth_CoversEveryOfferedDate(t *testing.T) {
	anchor := mustDate(t, "2024-02-15")
	recurring := []Record{
		NewRecurring(doc, Thursday, []TimeSlot{slot("09:00", "10:00")}),
		NewRecurring(doc, Friday, []TimeSlot{}),
	}
	month, err := ResolveMonth(doc, anchor, recurring, nil, 60)
	require.NoError(t, err)

	// February 2024 has Thursdays on the 1st, 8th, 15th, 22nd and 29th.
	assert.Len(t, month, 5)
	for d, day := range month {
		assert.Equal(t, Thursday, day.DayOfWeek)
		assert.Equal(t, d, day.Date)
		assert.True(t, d.SameMonth(anchor))
	}
}

func TestResolveMonth_NoEntryIsNotBlocked(t *testing.T) {
	anchor := mustDate(t, "2024-06-01")
	month, err := ResolveMonth(doc, anchor, nil, nil, 60)
	require.NoError(t, err)
	assert.Empty(t, month)
}

func TestResolveMonth_IgnoresInactiveAndForeignRecords(t *testing.T) {
	d := mustDate(t, "2024-06-10")
	inactive := NewSingle(doc, d, []TimeSlot{})
	inactive.IsActive = false
	foreign := NewSingle("doc-2", d, []TimeSlot{})
	recurring := []Record{NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "10:00")})}

	month, err := ResolveMonth(doc, d, recurring, []Record{inactive, foreign}, 60)
	require.NoError(t, err)
	assert.Equal(t, SourceRecurring, month[d].Source)
}

func TestResolveMonth_ValidationErrors(t *testing.T) {
	anchor := mustDate(t, "2024-06-01")
	july := mustDate(t, "2024-07-01")

	cases := []struct {
		name      string
		recurring []Record
		singles   []Record
	}{
		{"bad day of week", []Record{{DoctorID: doc, Kind: KindRecurring, DayOfWeek: "FUNDAY", IsActive: true}}, nil},
		{"single outside month", nil, []Record{NewSingle(doc, july, nil)}},
		{"duplicate recurring", []Record{NewRecurring(doc, Monday, nil), NewRecurring(doc, Monday, nil)}, nil},
		{"wrong kind", []Record{NewSingle(doc, anchor, nil)}, nil},
		{"overlapping slots", []Record{NewRecurring(doc, Monday, []TimeSlot{slot("09:00", "11:00"), slot("10:00", "12:00")})}, nil},
		{"reversed range", nil, []Record{NewSingle(doc, anchor, []TimeSlot{{StartTime: MustClock("12:00"), EndTime: MustClock("09:00")}})}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveMonth(doc, anchor, tc.recurring, tc.singles, 60)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}
}

func TestResolveDay_RecurringFallback(t *testing.T) {
	// 2024-06-11 is a Tuesday.
	d := mustDate(t, "2024-06-11")
	recurring := []Record{NewRecurring(doc, Tuesday, []TimeSlot{slot("13:00", "15:00")})}

	day, ok, err := ResolveDay(doc, d, recurring, nil, 60)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SourceRecurring, day.Source)
	assert.Equal(t, []TimeSlot{slot("13:00", "14:00"), slot("14:00", "15:00")}, day.EffectiveSlots)
}

func TestRecord_JSONKeepsEmptySlots(t *testing.T) {
	rec := NewSingle(doc, mustDate(t, "2024-06-10"), nil)
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"time_slots":[]`)
	assert.Contains(t, string(b), `"date":"2024-06-10"`)

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.IsBlock())
}
