package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Button struct {
	Text string
	Data string // callback data
	URL  string // link button when set
}

type Keyboard [][]Button

type Message struct {
	Text     string
	Image    []byte
	Keyboard Keyboard
}

// Messenger delivers outbound messages to a chat user.
type Messenger interface {
	Send(ctx context.Context, userID int64, msg Message) error
}

// NotificationService renders outcomes into user messages. Delivery is fire-and-forget:
// failures are logged and never returned to the caller.
type NotificationService struct {
	messenger Messenger
	log       *logrus.Logger
	timeout   time.Duration
}

func NewNotificationService(messenger Messenger, log *logrus.Logger) *NotificationService {
	return &NotificationService{messenger: messenger, log: log, timeout: 30 * time.Second}
}

func (s *NotificationService) Notify(ctx context.Context, userID int64, msg Message) {
	if s == nil || s.messenger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.messenger.Send(ctx, userID, msg); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("notification delivery failed")
	}
}

var (
	processAgainKeyboard = Keyboard{
		{{Text: "📸 Process another", Data: domain.ActionProcessPhoto}},
		{{Text: "◀️ Main menu", Data: domain.ActionBack}},
	}
	backKeyboard = Keyboard{{{Text: "◀️ Main menu", Data: domain.ActionBack}}}
)

func (s *NotificationService) TaskSucceeded(ctx context.Context, userID int64, image []byte) {
	msg := Message{Text: "✨ Processing finished!", Keyboard: processAgainKeyboard}
	if len(image) > 0 {
		msg.Image = image
	}
	s.Notify(ctx, userID, msg)
}

// TaskFailed tells the user the photo was not processed and the credit came back.
func (s *NotificationService) TaskFailed(ctx context.Context, userID int64, reason string, policyRejected bool) {
	var text string
	switch {
	case policyRejected:
		text = "🚫 This image cannot be processed: it violates the content policy.\nYour credit was returned."
	case reason != "":
		text = "❌ Could not process the image:\n\n" + reason + "\n\nYour credit was returned."
	default:
		text = "❌ Could not process the image. Your credit was returned."
	}
	s.Notify(ctx, userID, Message{Text: text, Keyboard: processAgainKeyboard})
}

func (s *NotificationService) TaskExpired(ctx context.Context, userID int64) {
	s.Notify(ctx, userID, Message{
		Text:     "⌛ Your photo was not processed in time. Your credit was returned.",
		Keyboard: processAgainKeyboard,
	})
}

func (s *NotificationService) PaymentPaid(ctx context.Context, p *models.Payment, balance int64) {
	s.Notify(ctx, p.UserID, Message{
		Text: fmt.Sprintf("✅ Payment received!\n💳 Amount: %s %s\n💎 Credits added: %d\n💰 Balance: %d",
			p.Amount.String(), p.Currency, p.Credits, balance),
		Keyboard: processAgainKeyboard,
	})
}

func (s *NotificationService) PaymentFailed(ctx context.Context, p *models.Payment) {
	s.Notify(ctx, p.UserID, Message{
		Text:     fmt.Sprintf("❌ Payment %s was not completed. No money was charged for credits.", p.MerchantOrderID),
		Keyboard: Keyboard{{{Text: "💳 Try again", Data: domain.ActionBuyCredits}}, backKeyboard[0]},
	})
}

func (s *NotificationService) CommissionEarned(ctx context.Context, referrerID int64, amount decimal.Decimal) {
	s.Notify(ctx, referrerID, Message{
		Text: fmt.Sprintf("🎉 Your referral made a purchase! You earned %s ₽.", amount.StringFixed(2)),
	})
}

func (s *NotificationService) ReferralJoined(ctx context.Context, referrerID int64, username string) {
	who := "A new user"
	if username != "" {
		who = "@" + username
	}
	s.Notify(ctx, referrerID, Message{Text: fmt.Sprintf("👥 %s joined using your referral link.", who)})
}

func (s *NotificationService) WithdrawalProcessed(ctx context.Context, w *models.Withdrawal) {
	var text string
	if w.Status == domain.WithdrawalStatusCompleted {
		text = fmt.Sprintf("✅ Your withdrawal of %s ₽ has been paid.", w.Amount.StringFixed(2))
	} else {
		text = fmt.Sprintf("❌ Your withdrawal of %s ₽ was rejected. The amount was returned to your earnings.", w.Amount.StringFixed(2))
	}
	s.Notify(ctx, w.UserID, Message{Text: text})
}

// Recorder is an in-memory Messenger for tests and dry runs.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

type Sent struct {
	UserID int64
	Msg    Message
}

func (r *Recorder) Send(_ context.Context, userID int64, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{UserID: userID, Msg: msg})
	return nil
}

// For returns the messages delivered to userID.
func (r *Recorder) For(userID int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, s := range r.sent {
		if s.UserID == userID {
			out = append(out, s.Msg)
		}
	}
	return out
}
