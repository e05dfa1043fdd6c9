package availability

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Doctor is the part of a doctor profile the matcher needs.
type Doctor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Specialty   string `json:"specialty,omitempty"`
}

// DoctorSchedule pairs a doctor with all of their availability records.
type DoctorSchedule struct {
	Doctor  Doctor
	Records []Record
}

// Criteria narrows a search. At least one facet must be set.
type Criteria struct {
	Date       *Date
	NamePrefix string
}

// IsEmpty reports whether no facet is set.
func (c Criteria) IsEmpty() bool {
	return c.Date == nil && strings.TrimSpace(c.NamePrefix) == ""
}

// Match is a doctor with at least one free slot on MatchedDate.
type Match struct {
	Doctor      Doctor     `json:"doctor"`
	MatchedDate Date       `json:"matched_date"`
	FreeSlots   []TimeSlot `json:"free_slots"`
}

// fold normalizes s for case-insensitive comparison. A Caser is stateful, so
// one is created per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Search returns the doctors with free time on the criteria date (today when
// only a name is given) whose display name starts with the name prefix.
// Results are ordered by display name under the root collation, then by id.
func Search(criteria Criteria, schedules []DoctorSchedule, today Date, granularity int) ([]Match, error) {
	if criteria.IsEmpty() {
		return nil, ErrEmptyQuery
	}
	date := today
	if criteria.Date != nil {
		date = *criteria.Date
	}
	if date.IsZero() {
		return nil, validationErrorf("search date is required")
	}
	prefix := fold(criteria.NamePrefix)

	matches := []Match{}
	for _, sch := range schedules {
		if prefix != "" && !strings.HasPrefix(fold(sch.Doctor.DisplayName), prefix) {
			continue
		}
		recurring, singles, err := SplitByKind(sch.Records)
		if err != nil {
			return nil, err
		}
		day, ok, err := ResolveDay(sch.Doctor.ID, date, recurring, singles, granularity)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		free := day.FreeSlots()
		if len(free) == 0 {
			continue
		}
		matches = append(matches, Match{Doctor: sch.Doctor, MatchedDate: date, FreeSlots: free})
	}

	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(matches, func(i, j int) bool {
		if c := coll.CompareString(matches[i].Doctor.DisplayName, matches[j].Doctor.DisplayName); c != 0 {
			return c < 0
		}
		return matches[i].Doctor.ID < matches[j].Doctor.ID
	})
	return matches, nil
}
