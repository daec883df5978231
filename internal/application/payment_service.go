package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidSignature is returned by a PaymentGateway for tampered callbacks.
var ErrInvalidSignature = errors.New("application: invalid payment signature")

// Merchant answers to provider callbacks.
const (
	PaymentCodeSuccess          = "00"
	PaymentCodeOrderNotFound    = "01"
	PaymentCodeAlreadyProcessed = "02"
	PaymentCodeInvalidAmount    = "04"
	PaymentCodeInvalidSignature = "97"
	PaymentCodeUnknownError     = "99"
)

// providerSuccess is the provider's response code for a settled transaction.
const providerSuccess = "00"

// PaymentRequest describes a redirect the gateway must sign.
type PaymentRequest struct {
	TxnRef    string
	BookingID string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// PaymentCallback is a verified provider notification.
type PaymentCallback struct {
	TxnRef        string
	Amount        int64
	ResponseCode  string
	TransactionNo string
}

// PaymentGateway signs outgoing redirects and verifies provider callbacks.
type PaymentGateway interface {
	PaymentURL(request PaymentRequest) (string, error)
	ParseCallback(params url.Values) (PaymentCallback, error)
}

// BookingConfirmer confirms a booking on behalf of the paying participant.
type BookingConfirmer interface {
	ConfirmBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error)
}

// PaymentService issues provider redirects and settles their callbacks.
type PaymentService struct {
	payments    PaymentRepository
	bookings    BookingRepository
	gateway     PaymentGateway
	confirmer   BookingConfirmer
	policy      Policy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPaymentService wires dependencies for payment operations. confirmer is
// invoked after a successful callback.
func NewPaymentService(deps Dependencies, confirmer BookingConfirmer) *PaymentService {
	deps = deps.withDefaults()
	return &PaymentService{
		payments:    deps.Repositories.Payments,
		bookings:    deps.Repositories.Bookings,
		gateway:     deps.Payments,
		confirmer:   confirmer,
		policy:      deps.Policy,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      deps.Logger,
	}
}

func (s *PaymentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PaymentService", operation, attrs...)
}

// CreatePaymentURL starts a PENDING payment for the principal and returns the
// signed provider redirect.
func (s *PaymentService) CreatePaymentURL(ctx context.Context, params PaymentParams) (redirect PaymentRedirect, err error) {
	if s == nil {
		err = fmt.Errorf("PaymentService is nil")
		return
	}
	if s.payments == nil || s.bookings == nil || s.gateway == nil {
		err = fmt.Errorf("payment dependencies not configured")
		return
	}

	actor := params.Principal.UserID
	logger := s.loggerWith(ctx, "CreatePaymentURL", "principal_id", actor, "booking_id", params.BookingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create payment url", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("txn_ref", redirect.TxnRef).InfoContext(ctx, "payment url created")
	}()

	booking, getErr := s.bookings.GetBooking(ctx, params.BookingID)
	if getErr != nil {
		err = mapRepoError(getErr)
		return
	}
	if !booking.Includes(actor) {
		err = ErrPermission
		return
	}
	if booking.Status != BookingProposed || booking.ConfirmedBy(actor) {
		err = ErrConflict
		return
	}

	now := s.now()
	payment := Payment{
		TxnRef:    txnRefFrom(s.idGenerator()),
		BookingID: booking.ID,
		UserID:    actor,
		Amount:    s.policy.PaymentAmount,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if payment.TxnRef == "" {
		err = fmt.Errorf("transaction reference generator returned an empty value")
		return
	}
	if createErr := s.payments.CreatePayment(ctx, payment); createErr != nil {
		err = mapRepoError(createErr)
		return
	}

	paymentURL, urlErr := s.gateway.PaymentURL(PaymentRequest{
		TxnRef:    payment.TxnRef,
		BookingID: booking.ID,
		Amount:    payment.Amount,
		OrderInfo: "Date booking " + booking.ID,
		ClientIP:  params.ClientIP,
		CreatedAt: now,
	})
	if urlErr != nil {
		err = fmt.Errorf("build payment url: %w", urlErr)
		return
	}

	redirect = PaymentRedirect{TxnRef: payment.TxnRef, URL: paymentURL}
	return
}

// VerifyPayment settles a provider callback. The returned code is the answer
// the provider expects; err is reserved for infrastructure failures. A
// successful callback moves the payment to SUCCESS once and confirms the
// booking for the payer.
func (s *PaymentService) VerifyPayment(ctx context.Context, params url.Values) (result PaymentVerification, err error) {
	if s == nil {
		err = fmt.Errorf("PaymentService is nil")
		return
	}
	if s.payments == nil || s.gateway == nil {
		err = fmt.Errorf("payment dependencies not configured")
		return
	}

	logger := s.loggerWith(ctx, "VerifyPayment", "txn_ref", params.Get("vnp_TxnRef"))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to verify payment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rsp_code", result.Code, "payment_status", string(result.Status)).InfoContext(ctx, "payment callback processed")
	}()

	callback, payment, result, ok, err := s.lookup(ctx, params)
	if err != nil || !ok {
		return
	}
	if callback.Amount != payment.Amount {
		result.Code, result.Message = PaymentCodeInvalidAmount, "Invalid amount"
		return
	}
	if payment.Status != PaymentPending {
		result.Code, result.Message = PaymentCodeAlreadyProcessed, "Order already confirmed"
		return
	}

	target := PaymentFailed
	if callback.ResponseCode == providerSuccess {
		target = PaymentSuccess
	}
	response := callback.ResponseCode
	if callback.TransactionNo != "" {
		response += ":" + callback.TransactionNo
	}

	transErr := s.payments.TransitionPayment(ctx, payment.TxnRef, PaymentPending, target, &response, s.now())
	if transErr != nil {
		if errors.Is(mapRepoError(transErr), ErrConflict) {
			result.Code, result.Message = PaymentCodeAlreadyProcessed, "Order already confirmed"
			return
		}
		err = mapRepoError(transErr)
		return
	}
	result.Status = target
	result.Code, result.Message = PaymentCodeSuccess, "Confirm Success"

	if target == PaymentSuccess && s.confirmer != nil {
		if _, confirmErr := s.confirmer.ConfirmBooking(ctx, Principal{UserID: payment.UserID}, payment.BookingID); confirmErr != nil {
			logger.WarnContext(ctx, "payment settled but booking confirmation failed",
				"booking_id", payment.BookingID, "error", confirmErr, "error_kind", ErrorKind(confirmErr))
		}
	}
	return
}

// CheckReturn verifies a browser return redirect and reports the stored
// payment status without changing it.
func (s *PaymentService) CheckReturn(ctx context.Context, params url.Values) (result PaymentVerification, err error) {
	if s == nil {
		err = fmt.Errorf("PaymentService is nil")
		return
	}
	if s.payments == nil || s.gateway == nil {
		err = fmt.Errorf("payment dependencies not configured")
		return
	}

	_, _, result, _, err = s.lookup(ctx, params)
	return
}

// lookup verifies the signature and loads the referenced payment. ok is
// false when result already holds the final answer.
func (s *PaymentService) lookup(ctx context.Context, params url.Values) (PaymentCallback, Payment, PaymentVerification, bool, error) {
	callback, err := s.gateway.ParseCallback(params)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return PaymentCallback{}, Payment{}, PaymentVerification{Code: PaymentCodeInvalidSignature, Message: "Invalid Signature"}, false, nil
		}
		return PaymentCallback{}, Payment{}, PaymentVerification{Code: PaymentCodeUnknownError, Message: "Unknown error"}, false, nil
	}

	payment, err := s.payments.GetPayment(ctx, callback.TxnRef)
	if err != nil {
		mapped := mapRepoError(err)
		if errors.Is(mapped, ErrNotFound) {
			return callback, Payment{}, PaymentVerification{Code: PaymentCodeOrderNotFound, Message: "Order not found", TxnRef: callback.TxnRef}, false, nil
		}
		return callback, Payment{}, PaymentVerification{}, false, mapped
	}

	result := PaymentVerification{
		Code:      PaymentCodeSuccess,
		Message:   "OK",
		TxnRef:    payment.TxnRef,
		BookingID: payment.BookingID,
		Status:    payment.Status,
	}
	return callback, payment, result, true, nil
}

// txnRefFrom keeps only the letters and digits providers accept in references.
func txnRefFrom(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
