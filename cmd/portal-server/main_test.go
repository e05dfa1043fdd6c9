package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medportal/portal/internal/config"
	"github.com/medportal/portal/internal/platform/availability"
	"github.com/medportal/portal/internal/platform/db"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "production",
		AuthIssuer:             "https://id.example",
		AuthSigningKey:         "test-secret",
		DBMaxConns:             5,
		DBMinConns:             1,
		SlotGranularityMinutes: 60,
		StoreTimeout:           time.Second,
		RequestTimeout:         5 * time.Second,
		ClinicTimezone:         "UTC",
		PurgeSchedule:          "@daily",
		PurgeRetentionDays:     90,
		BodyLimit:              "64K",
		CORSOrigins:            []string{"http://localhost:3000"},
	}
}

// The routes exercised here never touch the pool.
func TestBuildApp_Routes(t *testing.T) {
	a, err := buildApp(testConfig(), zerolog.Nop(), nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), version) {
		t.Errorf("/health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on /health")
	}

	rec = httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "portal_http_requests_total") {
		t.Errorf("/metrics: %d, body missing request counter", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/availability/search?name=ad", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api without token: expected 401, got %d", rec.Code)
	}
}

func TestBuildApp_BadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.ClinicTimezone = "Nowhere/Special"
	if _, err := buildApp(cfg, zerolog.Nop(), nil, prometheus.NewRegistry()); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestPrintCalendar(t *testing.T) {
	anchor, _ := availability.ParseMonth("2024-06")
	d1, _ := availability.ParseDate("2024-06-03")
	d2, _ := availability.ParseDate("2024-06-17")
	booked := availability.FreeSlot(availability.TimeRange{Start: availability.MustClock("10:00"), End: availability.MustClock("11:00")})
	booked.IsBooked = true

	var buf bytes.Buffer
	printCalendar(&buf, anchor, []availability.ResolvedDay{
		{
			Date:      d1,
			DayOfWeek: availability.Monday,
			Source:    availability.SourceRecurring,
			EffectiveSlots: []availability.TimeSlot{
				availability.FreeSlot(availability.TimeRange{Start: availability.MustClock("09:00"), End: availability.MustClock("10:00")}),
				booked,
			},
		},
		{Date: d2, DayOfWeek: availability.Monday, Source: availability.SourceBlocked, EffectiveSlots: []availability.TimeSlot{}},
	})

	out := buf.String()
	for _, want := range []string{"June 2024", "2024-06-03", "09:00-10:00 10:00-11:00*", "BLOCKED", "2024-06-17"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCalendar_Empty(t *testing.T) {
	anchor, _ := availability.ParseMonth("2024-02")
	var buf bytes.Buffer
	printCalendar(&buf, anchor, nil)
	if !strings.Contains(buf.String(), "no working days") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_portal.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_next.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2024-06-01 12:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}
