// Package imaging submits photos to the external image-processing API.
// Results come back asynchronously on the configured webhook.
package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var (
	// ErrInsufficientBalance is reported when the provider account has run out of funds.
	ErrInsufficientBalance = errors.New("processing api: insufficient balance")
	// ErrUnavailable marks transport failures and 5xx answers.
	ErrUnavailable = errors.New("processing api unavailable")
)

// APIError is any other error message returned by the provider.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "processing api: " + e.Message }

type Client struct {
	url       string
	apiKey    string
	operation string
	http      *http.Client
}

func NewClient(baseURL, submitPath, apiKey, operation string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		url:       strings.TrimRight(baseURL, "/") + submitPath,
		apiKey:    apiKey,
		operation: operation,
		http:      &http.Client{Timeout: timeout},
	}
}

type SubmitRequest struct {
	Image      []byte
	Filename   string
	TaskID     string // echoed back as id_gen in the callback
	WebhookURL string
}

type SubmitResult struct {
	QueueNum   int     `json:"queue_num"`
	QueueTime  int     `json:"queue_time"`
	APIBalance float64 `json:"api_balance"`
}

type submitResp struct {
	SubmitResult
	Error string `json:"error"`
}

func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	name := req.Filename
	if name == "" {
		name = "image.jpg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, name))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, err
	}
	_ = mw.WriteField("id_gen", req.TaskID)
	_ = mw.WriteField("webhook", req.WebhookURL)
	if c.operation != "" {
		_ = mw.WriteField("operation", c.operation)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("x-api-key", c.apiKey)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var out submitResp
	jsonErr := json.Unmarshal(body, &out)
	if jsonErr == nil && out.Error != "" {
		if strings.EqualFold(out.Error, "Insufficient balance") {
			return nil, ErrInsufficientBalance
		}
		return nil, &APIError{Message: out.Error}
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || jsonErr != nil {
		return nil, &APIError{Message: fmt.Sprintf("unexpected response, status %d", resp.StatusCode)}
	}
	return &out.SubmitResult, nil
}
