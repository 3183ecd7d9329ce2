package payment

import (
	"context"
	"fmt"
)

// StubProvider is a no-op provider for development; it returns a local redirect and never
// calls out.
type StubProvider struct {
	BaseURL string
}

func (s *StubProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	return &PaymentResponse{
		RedirectURL:    fmt.Sprintf("%s/payment/success?order_id=%s", s.BaseURL, req.OrderID),
		GatewayOrderID: "stub_" + req.OrderID,
	}, nil
}
