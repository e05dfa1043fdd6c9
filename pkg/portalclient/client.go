// Package portalclient talks to the portal's availability API and resolves
// calendars locally with the same engine the server uses. Local results are
// advisory; bookings are always checked by the server.
package portalclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/medportal/portal/internal/platform/availability"
)

type Client struct {
	baseURL string
	http    *http.Client
	token   string
	devUser string
}

type Option func(*Client)

// WithToken sends the bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithDevUser sets X-Dev-User for servers running development auth.
func WithDevUser(user string) Option {
	return func(c *Client) { c.devUser = user }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8000/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal api: %d %s", e.Status, e.Message)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.devUser != "" {
		req.Header.Set("X-Dev-User", c.devUser)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var he struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &he) == nil && he.Message != "" {
			msg = he.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Records returns every availability record of the doctor.
func (c *Client) Records(ctx context.Context, doctorID string) ([]availability.Record, error) {
	var records []availability.Record
	if err := c.get(ctx, "/availability/doctor/"+url.PathEscape(doctorID)+"/all", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ServerMonth is the server's resolution of one month.
type ServerMonth struct {
	DoctorID string                     `json:"doctor_id"`
	Month    string                     `json:"month"`
	Days     []availability.ResolvedDay `json:"days"`
}

func (c *Client) Month(ctx context.Context, doctorID string, anchor availability.Date) (ServerMonth, error) {
	var m ServerMonth
	q := url.Values{"month": {anchor.String()[:7]}}
	err := c.get(ctx, "/availability/doctor/"+url.PathEscape(doctorID)+"/month", q, &m)
	return m, err
}

// ResolveMonth fetches the doctor's records and resolves the anchor's month
// locally. Days come back in date order.
func (c *Client) ResolveMonth(ctx context.Context, doctorID string, anchor availability.Date, granularity int) ([]availability.ResolvedDay, error) {
	records, err := c.Records(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	var inMonth []availability.Record
	for _, r := range records {
		// The record list spans all dates; the resolver wants one month.
		if r.Kind == availability.KindSingle && (r.Date == nil || !r.Date.SameMonth(anchor)) {
			continue
		}
		inMonth = append(inMonth, r)
	}
	recurring, singles, err := availability.SplitByKind(inMonth)
	if err != nil {
		return nil, err
	}
	month, err := availability.ResolveMonth(doctorID, anchor, recurring, singles, granularity)
	if err != nil {
		return nil, err
	}
	days := make([]availability.ResolvedDay, 0, len(month))
	for _, d := range month {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// Search runs an availability search. date may be zero when name is set.
func (c *Client) Search(ctx context.Context, date availability.Date, name string) ([]availability.Match, error) {
	q := url.Values{}
	if !date.IsZero() {
		q.Set("date", date.String())
	}
	if name != "" {
		q.Set("name", name)
	}
	var matches []availability.Match
	if err := c.get(ctx, "/availability/search", q, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}
