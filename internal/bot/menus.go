package bot

import (
	"errors"
	"fmt"
	"strings"

	"creditbot/internal/domain"
	"creditbot/internal/models"
	"creditbot/internal/service"
	"creditbot/pkg/imaging"
)

const rulesText = `📜 Rules

1. Only upload photos you own or have permission to use.
2. Photos of minors are rejected and never processed.
3. One photo is processed at a time; each costs one credit.
4. A credit is returned automatically when processing fails.

Press "Accept" to continue.`

func mainMenu() service.Keyboard {
	return service.Keyboard{
		{{Text: "📸 Process photo", Data: domain.ActionProcessPhoto}},
		{{Text: "💳 Buy credits", Data: domain.ActionBuyCredits}, {Text: "💰 Balance", Data: domain.ActionCheckBalance}},
		{{Text: "👥 Referrals", Data: domain.ActionReferrals}, {Text: "📜 Rules", Data: domain.ActionViewRules}},
	}
}

func backRow() []service.Button {
	return []service.Button{{Text: "◀️ Main menu", Data: domain.ActionBack}}
}

func welcomeMessage(u *models.User) service.Message {
	if !u.AcceptedRules {
		return rulesMessage(false)
	}
	return service.Message{
		Text:     fmt.Sprintf("👋 Welcome! You have %d credits.\nSend a photo to process it.", u.Credits),
		Keyboard: mainMenu(),
	}
}

func rulesMessage(accepted bool) service.Message {
	if accepted {
		return service.Message{Text: rulesText, Keyboard: service.Keyboard{backRow()}}
	}
	return service.Message{
		Text:     rulesText,
		Keyboard: service.Keyboard{{{Text: "✅ Accept", Data: domain.ActionAcceptRules}}},
	}
}

func currencyMessage() service.Message {
	kb := make(service.Keyboard, 0, len(domain.Currencies)+1)
	for _, c := range domain.Currencies {
		kb = append(kb, []service.Button{{Text: c.Title, Data: SelectCurrency{Currency: c.Code}.Data()}})
	}
	kb = append(kb, backRow())
	return service.Message{Text: "💳 Choose a payment method:", Keyboard: kb}
}

func packagesMessage(currency domain.Currency) service.Message {
	kb := make(service.Keyboard, 0, len(domain.Packages)+1)
	for _, p := range domain.Packages {
		price, err := p.Price(currency.Code)
		if err != nil {
			continue
		}
		label := fmt.Sprintf("%s · %s %s", p.Description, price.String(), currency.Symbol)
		if currency.Code != "RUB" && currency.Code != "RUB_SBP" {
			if rub, err := domain.ToRUB(price, currency.Code); err == nil {
				label += fmt.Sprintf(" (≈%s ₽)", rub.StringFixed(0))
			}
		}
		kb = append(kb, []service.Button{{Text: label, Data: BuyPackage{PackageID: p.ID, Currency: currency.Code}.Data()}})
	}
	kb = append(kb, []service.Button{{Text: "◀️ Payment methods", Data: domain.ActionBuyCredits}})
	return service.Message{Text: fmt.Sprintf("📦 Packages (%s):", currency.Title), Keyboard: kb}
}

func checkoutMessage(c *service.Checkout) service.Message {
	return service.Message{
		Text: fmt.Sprintf("🧾 Order %s\n💎 %d credits for %s %s\n\nPress the button to pay. Credits arrive automatically.",
			c.MerchantOrderID, c.Credits, c.Amount.String(), c.Currency.Symbol),
		Keyboard: service.Keyboard{
			{{Text: "💳 Pay", URL: c.RedirectURL}},
			backRow(),
		},
	}
}

func balanceMessage(u *models.User) service.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Balance: %d credits", u.Credits)
	if u.HasPendingTask() {
		b.WriteString("\n⏳ A photo is being processed.")
		return service.Message{Text: b.String(), Keyboard: service.Keyboard{
			{{Text: "✖️ Cancel processing", Data: domain.ActionCancelProcessing}},
			backRow(),
		}}
	}
	return service.Message{Text: b.String(), Keyboard: service.Keyboard{
		{{Text: "💳 Buy credits", Data: domain.ActionBuyCredits}},
		backRow(),
	}}
}

func referralsMessage(botUsername string, st *service.ReferralStats) service.Message {
	link := fmt.Sprintf("https://t.me/%s?start=%s", botUsername, st.Code)
	text := fmt.Sprintf("👥 Referral program\n\nInvite friends and earn from every purchase they make.\n\n"+
		"🔗 Your link: %s\n👤 Referrals: %d\n💵 Available: %s ₽\n📈 Earned in total: %s ₽\n🏦 Withdrawn: %s ₽",
		link, st.Referrals, st.Earnings.StringFixed(2), st.TotalEarned.StringFixed(2), st.Withdrawn.StringFixed(2))
	if st.PendingPayout.IsPositive() {
		text += fmt.Sprintf("\n⏳ Pending withdrawal: %s ₽", st.PendingPayout.StringFixed(2))
	}
	return service.Message{Text: text, Keyboard: service.Keyboard{
		{{Text: "🏦 Withdraw", Data: domain.ActionWithdraw}},
		backRow(),
	}}
}

func withdrawHelpMessage() service.Message {
	return service.Message{
		Text:     "🏦 To withdraw your earnings send:\n/withdraw <card number or wallet>",
		Keyboard: service.Keyboard{backRow()},
	}
}

func queuedMessage(res *imaging.SubmitResult) service.Message {
	text := "⏳ Photo accepted and queued."
	if res != nil && res.QueueNum > 0 {
		text = fmt.Sprintf("⏳ Photo accepted. Queue position: %d", res.QueueNum)
		if res.QueueTime > 0 {
			text += fmt.Sprintf(", about %d s", res.QueueTime)
		}
		text += "."
	}
	return service.Message{Text: text, Keyboard: service.Keyboard{
		{{Text: "✖️ Cancel processing", Data: domain.ActionCancelProcessing}},
	}}
}

func errorMessage(err error) service.Message {
	msg := service.Message{Text: "⚠️ " + domain.UserMessage(err), Keyboard: service.Keyboard{backRow()}}
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		msg.Keyboard = service.Keyboard{{{Text: "💳 Buy credits", Data: domain.ActionBuyCredits}}, backRow()}
	case errors.Is(err, domain.ErrRulesNotAccepted):
		msg.Keyboard = service.Keyboard{{{Text: "📜 Rules", Data: domain.ActionViewRules}}}
	}
	return msg
}
