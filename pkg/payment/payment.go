package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnavailable marks transport failures and 5xx answers; the call may be retried.
var ErrUnavailable = errors.New("gateway unavailable")

// RejectedError is a definitive refusal from the gateway. Retrying will not help.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected payment: %s", e.Message)
}

type PaymentRequest struct {
	OrderID    string // merchant order id
	UserID     int64
	Amount     decimal.Decimal
	Currency   string // currency code sent to the gateway
	Method     string
	Credits    int64
	WebhookURL string
	SuccessURL string
	FailURL    string
	BackURL    string
}

type PaymentResponse struct {
	RedirectURL    string
	GatewayOrderID string
}

type Provider interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
}
