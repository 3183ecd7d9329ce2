package handler

import (
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PaymentPagesHandler serves the landing pages the gateway redirects the buyer to.
type PaymentPagesHandler struct {
	botLink string
}

func NewPaymentPagesHandler(botUsername string) *PaymentPagesHandler {
	link := ""
	if botUsername != "" {
		link = "https://t.me/" + botUsername
	}
	return &PaymentPagesHandler{botLink: link}
}

func (h *PaymentPagesHandler) Success(c *gin.Context) {
	h.render(c, "Payment received", "Your credits will appear in the bot within a minute.")
}

func (h *PaymentPagesHandler) Fail(c *gin.Context) {
	h.render(c, "Payment failed", "The payment was not completed. You can try again from the bot.")
}

func (h *PaymentPagesHandler) Back(c *gin.Context) {
	h.render(c, "Payment canceled", "You can return to the bot and pick another package.")
}

func (h *PaymentPagesHandler) render(c *gin.Context, title, text string) {
	back := ""
	if h.botLink != "" {
		back = fmt.Sprintf(`<p><a href="%s">Back to the bot</a></p>`, html.EscapeString(h.botLink))
	}
	page := fmt.Sprintf(`<!doctype html><html><head><meta charset="utf-8"><title>%s</title></head>`+
		`<body><h1>%s</h1><p>%s</p>%s</body></html>`,
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(text), back)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
