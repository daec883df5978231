package http

import (
	"net/http"
)

type RouterConfig struct {
	Pairings     *PairingHandler
	Bookings     *BookingHandler
	Chat         *ChatHandler
	Payments     *PaymentHandler
	Activities   *ActivityHandler
	Participants *ParticipantHandler
	Realtime     *RealtimeHandler
	// Middleware wraps every route, outermost first.
	Middleware []func(http.Handler) http.Handler
	// Authenticated wraps routes that act on behalf of a principal.
	Authenticated []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, chain(h, cfg.Authenticated))
	}

	if cfg.Pairings != nil {
		protected("POST /pairings", cfg.Pairings.Register)
		protected("GET /pairings", cfg.Pairings.List)
		protected("GET /pairings/{counterpartId}", cfg.Pairings.Status)
		protected("POST /pairings/{counterpartId}/submit", cfg.Pairings.Submit)
		protected("GET /pairings/{counterpartId}/slots", cfg.Pairings.ListSlots)
		protected("POST /pairings/{counterpartId}/slots", cfg.Pairings.AddSlot)
		protected("DELETE /slots/{id}", cfg.Pairings.DeleteSlot)
	}

	if cfg.Bookings != nil {
		protected("GET /pairings/{counterpartId}/booking", cfg.Bookings.ForPair)
		protected("GET /bookings", cfg.Bookings.List)
		protected("GET /bookings/{id}", cfg.Bookings.Get)
		protected("POST /bookings/{id}/confirm", cfg.Bookings.Confirm)
		protected("POST /bookings/{id}/cancel", cfg.Bookings.Cancel)
		protected("POST /bookings/{id}/cancel-confirmed", cfg.Bookings.CancelConfirmed)
		protected("POST /bookings/{id}/feedback", cfg.Bookings.Feedback)
		protected("GET /bookings/{id}/contact", cfg.Bookings.Contact)
	}

	if cfg.Chat != nil {
		protected("GET /bookings/{id}/chat", cfg.Chat.Status)
		protected("GET /bookings/{id}/messages", cfg.Chat.List)
		protected("POST /bookings/{id}/messages", cfg.Chat.Send)
	}

	if cfg.Payments != nil {
		protected("POST /bookings/{id}/payment", cfg.Payments.Create)
		mux.HandleFunc("GET /payments/vnpay/ipn", cfg.Payments.IPN)
		mux.HandleFunc("GET /payments/vnpay/return", cfg.Payments.Return)
	}

	if cfg.Activities != nil {
		protected("GET /activities", cfg.Activities.List)
		protected("POST /activities/read", cfg.Activities.MarkRead)
	}

	if cfg.Participants != nil {
		protected("GET /participants/me", cfg.Participants.Get)
		protected("PUT /participants/me", cfg.Participants.Upsert)
	}

	if cfg.Realtime != nil {
		protected("GET /ws", cfg.Realtime.Connect)
	}

	return chain(mux, cfg.Middleware)
}

func chain(handler http.Handler, middleware []func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			handler = middleware[i](handler)
		}
	}
	return handler
}
