package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/validation"
)

func newTestHandler(strict bool) (*Handler, *echo.Echo) {
	svc, _, _ := newTestService(strict)
	e := echo.New()
	e.Validator = validation.New()
	return NewHandler(svc), e
}

func newRequest(method, target, body string, sess auth.Session) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithSession(req.Context(), sess))
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

const bookBody = `{"doctor_id":"0b7c6a52-3c1f-4f43-9a55-5f1ea0b7a001","date":"2024-06-10","start_time":"10:00","end_time":"11:00"}`

func book(t *testing.T, h *Handler, e *echo.Echo, sess auth.Session) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/", bookBody, sess), rec)
	return rec, h.BookAppointment(c)
}

func TestHandler_BookAppointment(t *testing.T) {
	h, e := newTestHandler(false)

	rec, err := book(t, h, e, patientSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if a.StartTime.String() != "10:00" || a.Date.String() != "2024-06-10" {
		t.Errorf("unexpected appointment %+v", a)
	}

	// Repeating the request returns the same appointment.
	rec, err = book(t, h, e, patientSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on repeat, got %d", rec.Code)
	}

	_, err = book(t, h, e, otherPatient)
	if code := httpCode(t, err); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_BookAppointment_Strict(t *testing.T) {
	h, e := newTestHandler(true)
	if _, err := book(t, h, e, patientSession); err != nil {
		t.Fatal(err)
	}
	_, err := book(t, h, e, patientSession)
	if code := httpCode(t, err); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_BookAppointment_BadRequest(t *testing.T) {
	h, e := newTestHandler(false)
	c := e.NewContext(newRequest(http.MethodPost, "/", `{"doctor_id":"nope","date":"10/06/2024"}`, patientSession), httptest.NewRecorder())
	if code := httpCode(t, h.BookAppointment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_CancelAndNoShow(t *testing.T) {
	h, e := newTestHandler(false)
	rec, err := book(t, h, e, patientSession)
	if err != nil {
		t.Fatal(err)
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, "/", `{"reason":"travel"}`, patientSession), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(newRequest(http.MethodPost, "/", "", doctorSession), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.MarkNoShow(c)); code != http.StatusConflict {
		t.Errorf("expected 409 for a cancelled appointment, got %d", code)
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, e := newTestHandler(false)
	c := e.NewContext(newRequest(http.MethodGet, "/", "", adminSession), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("6f1c1e0e-9d53-4e7b-8f5e-0c0b7c0f0a11")
	if code := httpCode(t, h.GetAppointment(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_ListAppointments(t *testing.T) {
	h, e := newTestHandler(false)
	if _, err := book(t, h, e, patientSession); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodGet, "/", "", patientSession), rec)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(newRequest(http.MethodGet, "/", "", doctorSession), httptest.NewRecorder())
	if code := httpCode(t, h.ListAppointments(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 without a filter, got %d", code)
	}
}
