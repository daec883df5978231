// Package vnpay signs VNPay redirect URLs and verifies the provider's IPN and
// return callbacks.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/date-booking/internal/application"
)

const (
	version       = "2.1.0"
	command       = "pay"
	currency      = "VND"
	orderType     = "other"
	locale        = "vn"
	dateLayout    = "20060102150405"
	paramHash     = "vnp_SecureHash"
	paramHashType = "vnp_SecureHashType"
	// paramBookingID is appended to the return URL by CreatePaymentURL and is
	// not covered by the provider signature.
	paramBookingID = "bookingId"
)

// Config holds the merchant credentials issued by the provider.
type Config struct {
	PayURL     string
	TmnCode    string
	HashSecret string
	ReturnURL  string
	Location   *time.Location
}

// Gateway implements application.PaymentGateway.
type Gateway struct {
	cfg Config
}

var _ application.PaymentGateway = (*Gateway)(nil)

// New validates cfg and returns a gateway. Timestamps are rendered in
// Asia/Ho_Chi_Minh unless cfg.Location is set.
func New(cfg Config) (*Gateway, error) {
	var missing []string
	if cfg.PayURL == "" {
		missing = append(missing, "PayURL")
	}
	if cfg.TmnCode == "" {
		missing = append(missing, "TmnCode")
	}
	if cfg.HashSecret == "" {
		missing = append(missing, "HashSecret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("vnpay: missing %s", strings.Join(missing, ", "))
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
		if err != nil {
			loc = time.FixedZone("ICT", 7*60*60)
		}
		cfg.Location = loc
	}
	return &Gateway{cfg: cfg}, nil
}

// PaymentURL builds the signed redirect for request.
func (g *Gateway) PaymentURL(request application.PaymentRequest) (string, error) {
	if request.TxnRef == "" {
		return "", errors.New("vnpay: transaction reference is required")
	}
	if request.Amount <= 0 {
		return "", errors.New("vnpay: amount must be positive")
	}

	params := url.Values{}
	params.Set("vnp_Version", version)
	params.Set("vnp_Command", command)
	params.Set("vnp_TmnCode", g.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(request.Amount*100, 10))
	params.Set("vnp_CurrCode", currency)
	params.Set("vnp_TxnRef", request.TxnRef)
	params.Set("vnp_OrderInfo", request.OrderInfo)
	params.Set("vnp_OrderType", orderType)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_IpAddr", request.ClientIP)
	params.Set("vnp_CreateDate", request.CreatedAt.In(g.cfg.Location).Format(dateLayout))
	if g.cfg.ReturnURL != "" {
		params.Set("vnp_ReturnUrl", withBookingID(g.cfg.ReturnURL, request.BookingID))
	}

	query := Canonical(params)
	return g.cfg.PayURL + "?" + query + "&" + paramHash + "=" + Sign(g.cfg.HashSecret, query), nil
}

// ParseCallback verifies the signature of a provider callback and extracts
// the transaction fields. Tampered parameters yield application.ErrInvalidSignature.
func (g *Gateway) ParseCallback(params url.Values) (application.PaymentCallback, error) {
	if !Verify(g.cfg.HashSecret, params) {
		return application.PaymentCallback{}, application.ErrInvalidSignature
	}

	raw := params.Get("vnp_Amount")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return application.PaymentCallback{}, fmt.Errorf("vnpay: invalid amount %q: %w", raw, err)
	}
	return application.PaymentCallback{
		TxnRef:        params.Get("vnp_TxnRef"),
		Amount:        amount / 100,
		ResponseCode:  params.Get("vnp_ResponseCode"),
		TransactionNo: params.Get("vnp_TransactionNo"),
	}, nil
}

// Canonical renders the non-empty params sorted by key, with names and
// values query-escaped. The result is both the hash input and the query.
func Canonical(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if params.Get(key) != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA512 of data.
func Sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over params without the hash fields and
// the booking id, and compares it in constant time.
func Verify(secret string, params url.Values) bool {
	received := strings.ToLower(params.Get(paramHash))
	if received == "" {
		return false
	}
	signed := url.Values{}
	for key, values := range params {
		switch key {
		case paramHash, paramHashType, paramBookingID:
			continue
		}
		signed[key] = values
	}
	expected := Sign(secret, Canonical(signed))
	return hmac.Equal([]byte(expected), []byte(received))
}

func withBookingID(returnURL, bookingID string) string {
	if bookingID == "" {
		return returnURL
	}
	sep := "?"
	if strings.Contains(returnURL, "?") {
		sep = "&"
	}
	return returnURL + sep + paramBookingID + "=" + url.QueryEscape(bookingID)
}
