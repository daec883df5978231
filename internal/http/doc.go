// Package http provides HTTP handlers and middleware for the date booking API.
//
// Every route except the payment provider callbacks requires the X-User-ID
// header set by the authenticating gateway. Bodies and responses use the
// camelCase DTOs from package wire. Errors are returned as wire.Error with a
// stable code:
//   - 422 VALIDATION_FAILED with a per-field errors map, or INSUFFICIENT_SLOTS
//     with have/required counts
//   - 403 FORBIDDEN or PENALIZED (with until), 404 NOT_FOUND, 409 CONFLICT
//   - 402 PAYMENT_REQUIRED, 423 CHAT_LOCKED (with unlockAt), 429 when rate limited
//
// The router exposes:
//   - POST /pairings, GET /pairings, GET /pairings/{counterpartId}: pairing
//     registration and status.
//   - GET|POST /pairings/{counterpartId}/slots, DELETE /slots/{id}: availability
//     slots declared for one counterpart. Slot bounds are RFC 3339 timestamps.
//   - POST /pairings/{counterpartId}/submit: signals readiness and runs matching
//     once both sides have submitted.
//   - GET /bookings returns the nested participant shape; every other booking
//     endpoint returns the flat shape. POST /bookings/{id}/confirm, /cancel,
//     /cancel-confirmed and /feedback drive the booking lifecycle, and
//     GET /bookings/{id}/contact reveals the counterpart after a mutual opt-in.
//   - GET /bookings/{id}/chat, GET|POST /bookings/{id}/messages: gated chat.
//   - POST /bookings/{id}/payment returns a signed provider redirect;
//     GET /payments/vnpay/ipn and /payments/vnpay/return receive the provider
//     callbacks.
//   - GET /activities, POST /activities/read, GET|PUT /participants/me.
//   - GET /ws upgrades to the realtime hub.
package http
