package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/date-booking/internal/logging"
	"github.com/example/date-booking/internal/wire"
)

// NetworkError wraps a transport failure. The request may or may not have
// reached the server; callers recover by polling again.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return "network error during " + e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
	// RequestID is the server's id for the failed request, when it sent one.
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNetworkError reports whether err is a transient transport failure.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// APIClient calls the HTTP API as one participant.
type APIClient struct {
	baseURL string
	userID  string
	http    *http.Client
}

// NewAPIClient returns a client for baseURL acting as userID. A nil
// httpClient uses a 10s timeout.
func NewAPIClient(baseURL, userID string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), userID: userID, http: httpClient}
}

// UserID returns the acting participant.
func (c *APIClient) UserID() string { return c.userID }

// ListBookings fetches the participant's bookings.
func (c *APIClient) ListBookings(ctx context.Context) ([]Booking, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, "list bookings", http.MethodGet, "/bookings", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Booking, 0, len(raw))
	for _, item := range raw {
		b, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// GetBooking fetches one booking.
func (c *APIClient) GetBooking(ctx context.Context, id string) (Booking, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get booking", http.MethodGet, "/bookings/"+url.PathEscape(id), nil, &raw); err != nil {
		return Booking{}, err
	}
	return Normalize(raw)
}

// ConfirmBooking confirms as the acting participant.
func (c *APIClient) ConfirmBooking(ctx context.Context, id string) (Booking, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "confirm booking", http.MethodPost, "/bookings/"+url.PathEscape(id)+"/confirm", nil, &raw); err != nil {
		return Booking{}, err
	}
	return Normalize(raw)
}

// CancelBooking cancels a proposed booking.
func (c *APIClient) CancelBooking(ctx context.Context, id string) error {
	return c.do(ctx, "cancel booking", http.MethodPost, "/bookings/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// ListPairings fetches the participant's pairings.
func (c *APIClient) ListPairings(ctx context.Context) ([]wire.Pairing, error) {
	var out []wire.Pairing
	if err := c.do(ctx, "list pairings", http.MethodGet, "/pairings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitAvailability signals readiness for counterpartID.
func (c *APIClient) SubmitAvailability(ctx context.Context, counterpartID string) (wire.SubmitResult, error) {
	var out wire.SubmitResult
	err := c.do(ctx, "submit availability", http.MethodPost, "/pairings/"+url.PathEscape(counterpartID)+"/submit", nil, &out)
	return out, err
}

// ListActivities fetches the participant's activity feed.
func (c *APIClient) ListActivities(ctx context.Context) ([]wire.Activity, error) {
	var out []wire.Activity
	if err := c.do(ctx, "list activities", http.MethodGet, "/activities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", c.userID)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload wire.Error
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &APIError{
			Status:    resp.StatusCode,
			Code:      payload.Code,
			Message:   payload.Message,
			RequestID: resp.Header.Get(logging.RequestIDHeader),
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
