package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"creditbot/internal/metrics"
	"creditbot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxResultBytes = 32 << 20

type TaskCallbackApplier interface {
	ApplyCallback(ctx context.Context, cb service.TaskCallback) (service.CompleteResult, error)
}

// ProcessingWebhookHandler receives results from the image-processing API, either as JSON
// with a base64 result or as multipart with the image attached.
type ProcessingWebhookHandler struct {
	tasks TaskCallbackApplier
	log   *logrus.Logger
}

func NewProcessingWebhookHandler(tasks TaskCallbackApplier, log *logrus.Logger) *ProcessingWebhookHandler {
	return &ProcessingWebhookHandler{tasks: tasks, log: log}
}

func (h *ProcessingWebhookHandler) Handle(c *gin.Context) {
	cb, err := h.parse(c)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("processing", "malformed").Inc()
		h.log.WithError(err).Warn("malformed processing webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if cb.TaskID == "" {
		metrics.WebhooksTotal.WithLabelValues("processing", "malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id_gen"})
		return
	}
	res, err := h.tasks.ApplyCallback(c.Request.Context(), cb)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("processing", "error").Inc()
		h.log.WithError(err).WithField("task_id", cb.TaskID).Error("processing webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	result := "ignored"
	if res.Applied {
		result = "applied"
	}
	metrics.WebhooksTotal.WithLabelValues("processing", result).Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ProcessingWebhookHandler) parse(c *gin.Context) (service.TaskCallback, error) {
	if c.ContentType() == gin.MIMEJSON {
		var body struct {
			IDGen    string      `json:"id_gen"`
			Status   interface{} `json:"status"`
			Message  string      `json:"img_message"`
			Message2 string      `json:"img_message_2"`
			Result   string      `json:"result"`
		}
		if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxResultBytes)).Decode(&body); err != nil {
			return service.TaskCallback{}, err
		}
		cb := service.TaskCallback{
			TaskID:   strings.TrimSpace(body.IDGen),
			Status:   stringify(body.Status),
			Message:  body.Message,
			Message2: body.Message2,
		}
		if body.Result != "" {
			img, err := decodeBase64Image(body.Result)
			if err != nil {
				return cb, err
			}
			cb.Result = img
		}
		return cb, nil
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(maxResultBytes); err != nil {
			return service.TaskCallback{}, err
		}
	}
	cb := service.TaskCallback{
		TaskID:   strings.TrimSpace(c.PostForm("id_gen")),
		Status:   c.PostForm("status"),
		Message:  c.PostForm("img_message"),
		Message2: c.PostForm("img_message_2"),
	}
	if r := c.PostForm("result"); r != "" {
		img, err := decodeBase64Image(r)
		if err != nil {
			return cb, err
		}
		cb.Result = img
	}
	if len(cb.Result) == 0 && c.Request.MultipartForm != nil {
		for _, files := range c.Request.MultipartForm.File {
			if len(files) == 0 {
				continue
			}
			f, err := files[0].Open()
			if err != nil {
				return cb, err
			}
			data, err := io.ReadAll(io.LimitReader(f, maxResultBytes))
			f.Close()
			if err != nil {
				return cb, err
			}
			cb.Result = data
			break
		}
	}
	return cb, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}

// decodeBase64Image accepts plain base64 or a data URL.
func decodeBase64Image(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	if img, err := base64.StdEncoding.DecodeString(s); err == nil {
		return img, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
