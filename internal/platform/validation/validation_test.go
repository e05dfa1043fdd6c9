package validation

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type slotBody struct {
	Start string `json:"start_time" validate:"required,hhmm"`
	End   string `json:"end_time" validate:"required,hhmm"`
}

type overrideBody struct {
	Date      string      `json:"date" validate:"required,isodate"`
	TimeSlots *[]slotBody `json:"time_slots" validate:"required,dive"`
}

func TestValidator_Valid(t *testing.T) {
	slots := []slotBody{{Start: "09:00", End: "10:30"}}
	if err := New().Validate(&overrideBody{Date: "2024-06-10", TimeSlots: &slots}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidator_EmptySlotsAllowed(t *testing.T) {
	slots := []slotBody{}
	if err := New().Validate(&overrideBody{Date: "2024-06-10", TimeSlots: &slots}); err != nil {
		t.Fatalf("empty list blocks a date and must pass: %v", err)
	}
}

func TestValidator_FieldErrors(t *testing.T) {
	slots := []slotBody{{Start: "9:00", End: "24:00"}}
	err := New().Validate(&overrideBody{Date: "10/06/2024", TimeSlots: &slots})
	if err == nil {
		t.Fatal("expected validation error")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
	body, ok := he.Message.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map message, got %T", he.Message)
	}
	fields := body["fields"].(map[string]string)
	for _, f := range []string{"date", "time_slots[0].start_time", "time_slots[0].end_time"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("expected error for %s, got %v", f, fields)
		}
	}
	if fields["date"] != "must be YYYY-MM-DD" {
		t.Errorf("unexpected date message %q", fields["date"])
	}
}

func TestValidator_MissingSlots(t *testing.T) {
	err := New().Validate(&overrideBody{Date: "2024-06-10"})
	if err == nil {
		t.Fatal("expected error for omitted time_slots")
	}
	fields := err.(*echo.HTTPError).Message.(map[string]interface{})["fields"].(map[string]string)
	if fields["time_slots"] != "is required" {
		t.Errorf("unexpected fields %v", fields)
	}
}
