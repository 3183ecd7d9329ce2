package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"creditbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// maxPhotoBytes bounds downloads of user photos.
const maxPhotoBytes = 20 << 20

// Telegram adapts the Bot API to service.Messenger and downloads user files.
// Private chats share the user's id, so userID doubles as chat id.
type Telegram struct {
	api  *tgbotapi.BotAPI
	http *http.Client
	log  *logrus.Logger
}

func NewTelegram(api *tgbotapi.BotAPI, log *logrus.Logger) *Telegram {
	return &Telegram{api: api, http: &http.Client{Timeout: time.Minute}, log: log}
}

func (t *Telegram) Username() string { return t.api.Self.UserName }

func (t *Telegram) Send(_ context.Context, userID int64, msg service.Message) error {
	var c tgbotapi.Chattable
	if len(msg.Image) > 0 {
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileBytes{Name: "result.jpg", Bytes: msg.Image})
		photo.Caption = msg.Text
		if len(msg.Keyboard) > 0 {
			photo.ReplyMarkup = markup(msg.Keyboard)
		}
		c = photo
	} else {
		text := tgbotapi.NewMessage(userID, msg.Text)
		if len(msg.Keyboard) > 0 {
			text.ReplyMarkup = markup(msg.Keyboard)
		}
		c = text
	}
	if _, err := t.api.Send(c); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Ack answers a callback query so the client stops its spinner.
func (t *Telegram) Ack(callbackID, text string) {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		t.log.WithError(err).Debug("callback ack failed")
	}
}

// Download fetches a user-uploaded file by id.
func (t *Telegram) Download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram download: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

func markup(kb service.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
