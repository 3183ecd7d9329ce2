// Package bot is the Telegram front end: it turns updates into calls on the ledger,
// task and payment services and renders their results.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"creditbot/internal/app"
	"creditbot/internal/domain"
	"creditbot/internal/models"
	"creditbot/internal/service"
	"creditbot/pkg/imaging"
	"creditbot/pkg/retry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Transport is the chat side the bot talks to. *Telegram implements it.
type Transport interface {
	service.Messenger
	Download(ctx context.Context, fileID string) ([]byte, error)
	Ack(callbackID, text string)
}

// Submitter sends a photo to the processing API.
type Submitter interface {
	Submit(ctx context.Context, req imaging.SubmitRequest) (*imaging.SubmitResult, error)
}

type Options struct {
	Username   string // bot username, used in referral links
	WebhookURL string // processing callback URL
	Workers    int
	Retry      retry.Policy
}

type Bot struct {
	transport Transport
	svc       *app.Services
	imaging   Submitter
	opts      Options
	log       *logrus.Logger
}

func New(transport Transport, svc *app.Services, submitter Submitter, opts Options, log *logrus.Logger) *Bot {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Bot{transport: transport, svc: svc, imaging: submitter, opts: opts, log: log}
}

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventPhoto
	EventCallback
	EventText
)

// Event is the part of a Telegram update the bot acts on.
type Event struct {
	Kind       EventKind
	UserID     int64
	Username   string
	Command    string
	Args       string
	Text       string
	FileID     string
	CallbackID string
	Data       string
}

// EventFromUpdate extracts an Event. Updates the bot does not handle report false.
func EventFromUpdate(u tgbotapi.Update) (Event, bool) {
	if cq := u.CallbackQuery; cq != nil && cq.From != nil {
		return Event{Kind: EventCallback, UserID: cq.From.ID, Username: cq.From.UserName, CallbackID: cq.ID, Data: cq.Data}, true
	}
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return Event{}, false
	}
	ev := Event{UserID: m.From.ID, Username: m.From.UserName}
	switch {
	case m.IsCommand():
		ev.Kind, ev.Command, ev.Args = EventCommand, m.Command(), strings.TrimSpace(m.CommandArguments())
	case len(m.Photo) > 0:
		// Sizes are ascending; the last is the original.
		ev.Kind, ev.FileID = EventPhoto, m.Photo[len(m.Photo)-1].FileID
	case m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/"):
		ev.Kind, ev.FileID = EventPhoto, m.Document.FileID
	case m.Text != "":
		ev.Kind, ev.Text = EventText, m.Text
	default:
		return Event{}, false
	}
	return ev, true
}

// Run consumes updates until ctx is done or the channel closes. Updates from different
// users are handled concurrently, bounded by Options.Workers.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	b.log.WithField("workers", b.opts.Workers).Info("bot started")
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case u, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			ev, ok := EventFromUpdate(u)
			if !ok {
				continue
			}
			g.Go(func() error {
				b.Handle(gctx, ev)
				return nil
			})
		}
	}
}

// Handle processes one event. Errors are rendered to the user and logged, never returned.
func (b *Bot) Handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{"user_id": ev.UserID, "panic": r}).Error("update handler panicked")
		}
	}()
	if ev.Kind == EventCallback {
		b.transport.Ack(ev.CallbackID, "")
	}
	u, created, err := b.svc.Users.EnsureUser(ctx, ev.UserID, ev.Username)
	if err != nil {
		b.fail(ctx, ev.UserID, err)
		return
	}
	switch ev.Kind {
	case EventCommand:
		b.command(ctx, ev, u, created)
	case EventPhoto:
		b.photo(ctx, u, ev.FileID)
	case EventCallback:
		action, err := ParseAction(ev.Data)
		if err != nil {
			b.log.WithError(err).WithField("user_id", ev.UserID).Warn("unknown callback data")
			b.reply(ctx, ev.UserID, welcomeMessage(u))
			return
		}
		b.dispatch(ctx, u, action)
	case EventText:
		b.reply(ctx, ev.UserID, welcomeMessage(u))
	}
}

func (b *Bot) command(ctx context.Context, ev Event, u *models.User, created bool) {
	switch ev.Command {
	case "start":
		b.start(ctx, ev, u, created)
	case "buy":
		b.reply(ctx, u.ID, currencyMessage())
	case "balance", "credits":
		b.reply(ctx, u.ID, balanceMessage(u))
	case "referrals":
		b.referrals(ctx, u.ID)
	case "rules":
		b.reply(ctx, u.ID, rulesMessage(u.AcceptedRules))
	case "withdraw":
		b.withdraw(ctx, u.ID, ev.Args)
	case "cancel":
		b.cancel(ctx, u.ID)
	default:
		b.reply(ctx, u.ID, welcomeMessage(u))
	}
}

func (b *Bot) dispatch(ctx context.Context, u *models.User, action Action) {
	switch a := action.(type) {
	case ProcessPhoto:
		if !u.AcceptedRules {
			b.reply(ctx, u.ID, rulesMessage(false))
			return
		}
		b.reply(ctx, u.ID, service.Message{Text: "📸 Send me a photo.", Keyboard: service.Keyboard{backRow()}})
	case BuyCredits:
		b.reply(ctx, u.ID, currencyMessage())
	case SelectCurrency:
		c, err := domain.FindCurrency(a.Currency)
		if err != nil {
			b.fail(ctx, u.ID, err)
			return
		}
		b.reply(ctx, u.ID, packagesMessage(c))
	case BuyPackage:
		b.buy(ctx, u.ID, a)
	case CheckBalance:
		b.reply(ctx, u.ID, balanceMessage(u))
	case ShowReferrals:
		b.referrals(ctx, u.ID)
	case AcceptRules:
		if err := b.svc.Users.AcceptRules(ctx, u.ID); err != nil {
			b.fail(ctx, u.ID, err)
			return
		}
		u.AcceptedRules = true
		b.reply(ctx, u.ID, welcomeMessage(u))
	case ViewRules:
		b.reply(ctx, u.ID, rulesMessage(u.AcceptedRules))
	case Withdraw:
		b.reply(ctx, u.ID, withdrawHelpMessage())
	case CancelProcessing:
		b.cancel(ctx, u.ID)
	case Back:
		b.reply(ctx, u.ID, welcomeMessage(u))
	}
}

// start links a referral for brand new users only, then shows the menu.
func (b *Bot) start(ctx context.Context, ev Event, u *models.User, created bool) {
	if created && ev.Args != "" {
		referrerID, err := domain.ParseReferralCode(ev.Args)
		if err != nil {
			b.log.WithError(err).WithField("user_id", u.ID).Info("ignoring bad referral code")
		} else if err := b.svc.Referrals.LinkReferral(ctx, u.ID, referrerID); err != nil {
			b.fail(ctx, u.ID, err)
		} else {
			b.svc.Notifier.ReferralJoined(ctx, referrerID, u.Username)
		}
	}
	b.reply(ctx, u.ID, welcomeMessage(u))
}

func (b *Bot) buy(ctx context.Context, userID int64, a BuyPackage) {
	checkout, err := b.svc.Payments.Initiate(ctx, userID, a.PackageID, a.Currency)
	if err != nil {
		b.fail(ctx, userID, err)
		return
	}
	b.reply(ctx, userID, checkoutMessage(checkout))
}

func (b *Bot) referrals(ctx context.Context, userID int64) {
	st, err := b.svc.Referrals.Stats(ctx, userID)
	if err != nil {
		b.fail(ctx, userID, err)
		return
	}
	b.reply(ctx, userID, referralsMessage(b.opts.Username, st))
}

func (b *Bot) withdraw(ctx context.Context, userID int64, details string) {
	if details == "" {
		b.reply(ctx, userID, withdrawHelpMessage())
		return
	}
	w, err := b.svc.Withdrawals.Request(ctx, userID, details)
	if err != nil {
		b.fail(ctx, userID, err)
		return
	}
	b.reply(ctx, userID, service.Message{
		Text:     fmt.Sprintf("✅ Withdrawal request for %s ₽ submitted. We will notify you once it is reviewed.", w.Amount.StringFixed(2)),
		Keyboard: service.Keyboard{backRow()},
	})
}

func (b *Bot) cancel(ctx context.Context, userID int64) {
	canceled, err := b.svc.Tasks.CancelTask(ctx, userID)
	if err != nil {
		b.fail(ctx, userID, err)
		return
	}
	text := "There is no photo being processed."
	if canceled {
		text = "✖️ Processing canceled. Your credit was returned."
	}
	b.reply(ctx, userID, service.Message{Text: text, Keyboard: mainMenu()})
}

// photo debits a credit, submits the image and leaves the task pending until the
// processing webhook resolves it. Any failure before the provider accepts the photo
// fails the task, which refunds the credit.
func (b *Bot) photo(ctx context.Context, u *models.User, fileID string) {
	if !u.AcceptedRules {
		b.fail(ctx, u.ID, domain.ErrRulesNotAccepted)
		return
	}
	taskID, err := b.svc.Tasks.BeginTask(ctx, u.ID)
	if err != nil {
		b.fail(ctx, u.ID, err)
		return
	}
	log := b.log.WithFields(logrus.Fields{"user_id": u.ID, "task_id": taskID})

	image, err := b.transport.Download(ctx, fileID)
	if err != nil {
		b.abortTask(ctx, u.ID, taskID, err)
		return
	}

	var res *imaging.SubmitResult
	err = b.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = b.imaging.Submit(ctx, imaging.SubmitRequest{
			Image:      image,
			Filename:   "photo.jpg",
			TaskID:     taskID,
			WebhookURL: b.opts.WebhookURL,
		})
		return err
	}, func(err error) bool { return errors.Is(err, imaging.ErrUnavailable) })
	if err != nil {
		if errors.Is(err, imaging.ErrInsufficientBalance) {
			err = fmt.Errorf("%w: %v", domain.ErrProcessingBalance, err)
		} else if errors.Is(err, imaging.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProcessingUnavailable, err)
		}
		b.abortTask(ctx, u.ID, taskID, err)
		return
	}
	log.WithField("queue", res.QueueNum).Info("photo submitted")
	b.reply(ctx, u.ID, queuedMessage(res))
}

func (b *Bot) abortTask(ctx context.Context, userID int64, taskID string, cause error) {
	log := b.log.WithFields(logrus.Fields{"user_id": userID, "task_id": taskID})
	log.WithError(cause).Error("photo submission failed")
	res, err := b.svc.Tasks.CompleteTask(ctx, taskID, service.OutcomeFailure, cause.Error())
	if err != nil {
		// The sweeper refunds the task once it goes stale.
		log.WithError(err).Error("failed to resolve aborted task")
		b.reply(ctx, userID, errorMessage(err))
		return
	}
	if !res.Applied {
		return
	}
	if errors.Is(cause, domain.ErrProcessingBalance) {
		b.reply(ctx, userID, errorMessage(cause))
		return
	}
	b.svc.Notifier.TaskFailed(ctx, userID, "", false)
}

func (b *Bot) reply(ctx context.Context, userID int64, msg service.Message) {
	b.svc.Notifier.Notify(ctx, userID, msg)
}

func (b *Bot) fail(ctx context.Context, userID int64, err error) {
	log := b.log.WithError(err).WithField("user_id", userID)
	if domain.IsUserRecoverable(err) {
		log.Info("request rejected")
	} else {
		log.Error("request failed")
	}
	b.reply(ctx, userID, errorMessage(err))
}
