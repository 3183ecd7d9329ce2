package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RukassaProvider creates card, SBP and crypto payments through the Rukassa shop API.
type RukassaProvider struct {
	APIURL string
	ShopID string
	Token  string
	client *http.Client
	log    logrus.FieldLogger
}

func NewRukassaProvider(apiURL, shopID, token string, timeout time.Duration, log logrus.FieldLogger) *RukassaProvider {
	if apiURL == "" {
		apiURL = "https://lk.rukassa.pro/api/v1/create"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RukassaProvider{
		APIURL: apiURL,
		ShopID: shopID,
		Token:  token,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

type rukassaCreateResp struct {
	ID      json.Number     `json:"id"`
	Hash    string          `json:"hash"`
	URL     string          `json:"url"`
	Link    string          `json:"link"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func (r rukassaCreateResp) failed() bool {
	e := strings.TrimSpace(string(r.Error))
	return e != "" && e != "null" && e != "false" && e != `""` && e != "0"
}

func (p *RukassaProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	custom, _ := json.Marshal(map[string]int64{"credits": req.Credits, "user_id": req.UserID})
	form := url.Values{}
	form.Set("shop_id", p.ShopID)
	form.Set("token", p.Token)
	form.Set("order_id", req.OrderID)
	form.Set("amount", req.Amount.String())
	form.Set("user_code", fmt.Sprint(req.UserID))
	form.Set("method", req.Method)
	form.Set("currency_in", req.Currency)
	form.Set("custom_fields", string(custom))
	form.Set("webhook_url", req.WebhookURL)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("back_url", req.BackURL)

	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	apiReq.Header.Set("Accept", "application/json")
	p.log.WithFields(logrus.Fields{"merchant_order_id": req.OrderID, "method": req.Method}).Info("rukassa: create payment")
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out rukassaCreateResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &RejectedError{Message: fmt.Sprintf("status %d: unreadable response", resp.StatusCode)}
	}
	if out.failed() || resp.StatusCode >= 400 {
		msg := out.Message
		if msg == "" {
			msg = strings.Trim(string(out.Error), `"`)
		}
		return nil, &RejectedError{Message: msg}
	}
	redirect := out.URL
	if redirect == "" {
		redirect = out.Link
	}
	if redirect == "" {
		return nil, &RejectedError{Message: "no payment url in response"}
	}
	return &PaymentResponse{RedirectURL: redirect, GatewayOrderID: out.ID.String()}, nil
}
