package application

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
)

func callback(ref string, amount int64, code, signature string) url.Values {
	return url.Values{
		"ref":       {ref},
		"amount":    {strconv.FormatInt(amount, 10)},
		"code":      {code},
		"signature": {signature},
	}
}

func TestPaymentService_CreatePaymentURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	redirect, err := h.payments.CreatePaymentURL(ctx, PaymentParams{Principal: Principal{UserID: "alice"}, BookingID: booking.ID, ClientIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("CreatePaymentURL failed: %v", err)
	}
	if redirect.TxnRef == "" || redirect.URL == "" {
		t.Fatalf("unexpected redirect %#v", redirect)
	}
	for _, r := range redirect.TxnRef {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') {
			t.Fatalf("expected an alphanumeric reference, got %q", redirect.TxnRef)
		}
	}

	stored, err := h.store.GetPayment(ctx, redirect.TxnRef)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if stored.Status != PaymentPending || stored.Amount != 100000 || stored.UserID != "alice" {
		t.Fatalf("unexpected payment %#v", stored)
	}
	if len(h.gateway.requests) != 1 || h.gateway.requests[0].ClientIP != "10.0.0.1" {
		t.Fatalf("expected the gateway to sign one request, got %#v", h.gateway.requests)
	}

	if _, err := h.payments.CreatePaymentURL(ctx, PaymentParams{Principal: Principal{UserID: "mallory"}, BookingID: booking.ID}); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}

	h.confirm(t, "alice", booking.ID)
	if _, err := h.payments.CreatePaymentURL(ctx, PaymentParams{Principal: Principal{UserID: "alice"}, BookingID: booking.ID}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict after confirming, got %v", err)
	}
}

func TestPaymentService_VerifyPaymentCodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	redirect, err := h.payments.CreatePaymentURL(ctx, PaymentParams{Principal: Principal{UserID: "alice"}, BookingID: booking.ID})
	if err != nil {
		t.Fatalf("CreatePaymentURL failed: %v", err)
	}

	steps := []struct {
		name   string
		params url.Values
		code   string
	}{
		{name: "tampered signature", params: callback(redirect.TxnRef, 100000, "00", "bad"), code: PaymentCodeInvalidSignature},
		{name: "unknown order", params: callback("NOPE", 100000, "00", "ok"), code: PaymentCodeOrderNotFound},
		{name: "wrong amount", params: callback(redirect.TxnRef, 5, "00", "ok"), code: PaymentCodeInvalidAmount},
		{name: "settled", params: callback(redirect.TxnRef, 100000, "00", "ok"), code: PaymentCodeSuccess},
		{name: "replayed", params: callback(redirect.TxnRef, 100000, "00", "ok"), code: PaymentCodeAlreadyProcessed},
	}
	for _, step := range steps {
		result, err := h.payments.VerifyPayment(ctx, step.params)
		if err != nil {
			t.Fatalf("%s: VerifyPayment failed: %v", step.name, err)
		}
		if result.Code != step.code {
			t.Fatalf("%s: expected code %s, got %s (%s)", step.name, step.code, result.Code, result.Message)
		}
	}

	stored, _ := h.store.GetPayment(ctx, redirect.TxnRef)
	if stored.Status != PaymentSuccess {
		t.Fatalf("expected SUCCESS, got %s", stored.Status)
	}
	updated, _ := h.store.GetBooking(ctx, booking.ID)
	if !updated.ConfirmedBy("alice") || updated.Status != BookingProposed {
		t.Fatalf("expected alice to be confirmed by the callback, got %#v", updated)
	}
}

func TestPaymentService_FailedProviderResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	redirect, err := h.payments.CreatePaymentURL(ctx, PaymentParams{Principal: Principal{UserID: "bob"}, BookingID: booking.ID})
	if err != nil {
		t.Fatalf("CreatePaymentURL failed: %v", err)
	}
	result, err := h.payments.VerifyPayment(ctx, callback(redirect.TxnRef, 100000, "24", "ok"))
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if result.Code != PaymentCodeSuccess || result.Status != PaymentFailed {
		t.Fatalf("expected the failure to be acknowledged, got %#v", result)
	}
	updated, _ := h.store.GetBooking(ctx, booking.ID)
	if updated.ConfirmedBy("bob") {
		t.Fatalf("expected no confirmation after a failed payment")
	}
}

func TestPaymentService_BothPaymentsConfirmBooking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	booking := h.propose(t)

	for _, userID := range []string{"alice", "bob"} {
		redirect, err := h.payments.CreatePaymentURL(ctx, PaymentParams{Principal: Principal{UserID: userID}, BookingID: booking.ID})
		if err != nil {
			t.Fatalf("CreatePaymentURL %s failed: %v", userID, err)
		}
		if _, err := h.payments.VerifyPayment(ctx, callback(redirect.TxnRef, 100000, "00", "ok")); err != nil {
			t.Fatalf("VerifyPayment %s failed: %v", userID, err)
		}

		check, err := h.payments.CheckReturn(ctx, callback(redirect.TxnRef, 100000, "00", "ok"))
		if err != nil {
			t.Fatalf("CheckReturn failed: %v", err)
		}
		if check.Status != PaymentSuccess || check.BookingID != booking.ID {
			t.Fatalf("unexpected return check %#v", check)
		}
	}

	updated, _ := h.store.GetBooking(ctx, booking.ID)
	if updated.Status != BookingConfirmed {
		t.Fatalf("expected CONFIRMED after both payments, got %s", updated.Status)
	}
	for _, userID := range []string{"alice", "bob"} {
		if got := h.notifier.count(userID, TopicScheduling, ActivityBookingUpdate, bookingWithStatus(BookingConfirmed)); got != 1 {
			t.Fatalf("expected one CONFIRMED event for %s, got %d", userID, got)
		}
	}
}

func TestTxnRefFrom(t *testing.T) {
	t.Parallel()

	if got := txnRefFrom("3f2a-9c_b1"); got != "3F2A9CB1" {
		t.Fatalf("unexpected reference %q", got)
	}
}
