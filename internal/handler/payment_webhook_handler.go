package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"creditbot/internal/domain"
	"creditbot/internal/metrics"
	"creditbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PaymentWebhookApplier interface {
	ApplyWebhook(ctx context.Context, wh service.PaymentWebhook) (service.WebhookResult, error)
}

// PaymentWebhookHandler receives gateway payment notifications (form or JSON).
type PaymentWebhookHandler struct {
	payments PaymentWebhookApplier
	log      *logrus.Logger
}

func NewPaymentWebhookHandler(payments PaymentWebhookApplier, log *logrus.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{payments: payments, log: log}
}

func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	fields, err := parseWebhookFields(c.ContentType(), body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("payment", "malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	wh := service.PaymentWebhook{
		ShopID:          fields["shop_id"],
		Amount:          fields["amount"],
		OrderID:         fields["order_id"],
		PaymentStatus:   fields["payment_status"],
		PaymentMethod:   fields["payment_method"],
		CustomFields:    fields["custom_fields"],
		MerchantOrderID: fields["merchant_order_id"],
		Sign:            fields["sign"],
	}

	res, err := h.payments.ApplyWebhook(c.Request.Context(), wh)
	switch {
	case err == nil:
		result := "ignored"
		if res.Applied {
			result = "applied"
		}
		metrics.WebhooksTotal.WithLabelValues("payment", result).Inc()
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, domain.ErrInvalidSignature):
		metrics.WebhooksTotal.WithLabelValues("payment", "bad_signature").Inc()
		h.log.WithFields(logrus.Fields{"ip": c.ClientIP(), "merchant_order_id": wh.MerchantOrderID}).
			Error("rejected payment webhook with invalid signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	case errors.Is(err, domain.ErrMalformedWebhook):
		metrics.WebhooksTotal.WithLabelValues("payment", "malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
	case errors.Is(err, domain.ErrUnknownPayment):
		metrics.WebhooksTotal.WithLabelValues("payment", "unknown").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	default:
		metrics.WebhooksTotal.WithLabelValues("payment", "error").Inc()
		h.log.WithError(err).WithField("merchant_order_id", wh.MerchantOrderID).Error("payment webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseWebhookFields flattens a JSON object or urlencoded form into strings. JSON numbers
// keep their literal text because the signature is computed over it.
func parseWebhookFields(contentType string, body []byte) (map[string]string, error) {
	out := make(map[string]string)
	if contentType == gin.MIMEJSON {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			switch t := v.(type) {
			case nil:
			case string:
				out[k] = t
			case json.Number:
				out[k] = t.String()
			case map[string]interface{}, []interface{}:
				b, _ := json.Marshal(t)
				out[k] = string(b)
			default:
				out[k] = fmt.Sprint(t)
			}
		}
		return out, nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	for k := range values {
		out[k] = values.Get(k)
	}
	return out, nil
}
