package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/date-booking/internal/logging"
)

func TestAPIClientListBookings(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bookings" || r.Header.Get("X-User-ID") != "alice" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[" + flatBooking + "," + nestedBooking + "]"))
	}))
	defer server.Close()

	api := NewAPIClient(server.URL+"/", "alice", server.Client())
	bookings, err := api.ListBookings(context.Background())
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(bookings) != 2 || bookings[0].ID != "b1" || bookings[1].RecipientName != "Alice" {
		t.Fatalf("unexpected bookings %#v", bookings)
	}
}

func TestAPIClientErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bookings/b1/confirm":
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(logging.RequestIDHeader, r.Header.Get(logging.RequestIDHeader))
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"code":"PAYMENT_REQUIRED","message":"payment required"}`))
		case "/bookings":
			_, _ = w.Write([]byte(`{"truncated":`))
		}
	}))
	defer server.Close()

	api := NewAPIClient(server.URL, "alice", server.Client())

	ctx := logging.ContextWithRequestID(context.Background(), "req-7")
	_, err := api.ConfirmBooking(ctx, "b1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusPaymentRequired || apiErr.Code != "PAYMENT_REQUIRED" {
		t.Fatalf("expected a payment required APIError, got %v", err)
	}
	if apiErr.RequestID != "req-7" {
		t.Fatalf("expected the request id to round trip, got %q", apiErr.RequestID)
	}
	if IsNetworkError(err) {
		t.Fatalf("expected a rejection not to be a network error")
	}

	if _, err := api.ListBookings(context.Background()); !IsNetworkError(err) {
		t.Fatalf("expected a decode failure to be a network error, got %v", err)
	}

	server.Close()
	if err := api.CancelBooking(context.Background(), "b1"); !IsNetworkError(err) {
		t.Fatalf("expected a network error once the server is gone, got %v", err)
	}
}
