package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code        string
	Symbol      string
	Title       string
	Method      string // gateway payment method
	GatewayCode string // currency code sent to the gateway
}

type CreditPackage struct {
	ID          int
	Credits     int64
	Description string
	Prices      map[string]decimal.Decimal
}

var Currencies = []Currency{
	{Code: "RUB", Symbol: "₽", Title: "Visa/MC/MIR", Method: "card", GatewayCode: "RUB"},
	{Code: "KZT", Symbol: "₸", Title: "Visa/MC [KZT]", Method: "card_kzt", GatewayCode: "KZT"},
	{Code: "UZS", Symbol: "сум", Title: "Visa/MC [UZS]", Method: "card_uzs", GatewayCode: "UZS"},
	{Code: "CRYPTO", Symbol: "USDT", Title: "Crypto", Method: "crypta", GatewayCode: "USDT"},
	{Code: "RUB_SBP", Symbol: "₽", Title: "SBP", Method: "sbp", GatewayCode: "RUB"},
}

func prices(rub, kzt, uzs int64, crypto string) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"RUB":     decimal.NewFromInt(rub),
		"KZT":     decimal.NewFromInt(kzt),
		"UZS":     decimal.NewFromInt(uzs),
		"CRYPTO":  decimal.RequireFromString(crypto),
		"RUB_SBP": decimal.NewFromInt(rub),
	}
}

var Packages = []CreditPackage{
	{ID: 1, Credits: 3, Description: "3 credits", Prices: prices(300, 32500, 86000, "3.00")},
	{ID: 2, Credits: 7, Description: "7 credits", Prices: prices(600, 58500, 154800, "6.00")},
	{ID: 3, Credits: 15, Description: "15 credits", Prices: prices(1200, 108000, 286000, "12.00")},
	{ID: 4, Credits: 30, Description: "30 credits", Prices: prices(2000, 195000, 516000, "20.00")},
}

// RUBRates is the static display conversion table. It never changes a stored amount.
var RUBRates = map[string]decimal.Decimal{
	"RUB":     decimal.NewFromInt(1),
	"KZT":     decimal.RequireFromString("0.21"),
	"UZS":     decimal.RequireFromString("0.0075"),
	"CRYPTO":  decimal.NewFromInt(95),
	"RUB_SBP": decimal.NewFromInt(1),
}

func FindCurrency(code string) (Currency, error) {
	for _, c := range Currencies {
		if c.Code == code {
			return c, nil
		}
	}
	return Currency{}, ErrUnsupportedCurrency
}

func FindPackage(id int) (CreditPackage, error) {
	for _, p := range Packages {
		if p.ID == id {
			return p, nil
		}
	}
	return CreditPackage{}, ErrUnknownPackage
}

// Price returns the package price in the given currency.
func (p CreditPackage) Price(currency string) (decimal.Decimal, error) {
	price, ok := p.Prices[currency]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	return price, nil
}

// ToRUB converts an amount to its RUB equivalent, rounded to kopecks.
func ToRUB(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, ok := RUBRates[currency]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	return amount.Mul(rate).Round(2), nil
}

// Commission is the referrer's share of a payment. Referral earnings are kept in RUB,
// so amount is converted with ToRUB before rate applies. For a non-RUB payment the
// result is rate times the RUB value, not rate times Payment.Amount.
func Commission(amount decimal.Decimal, currency string, rate decimal.Decimal) (decimal.Decimal, error) {
	rub, err := ToRUB(amount, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return rub.Mul(rate).Round(2), nil
}

// ReferralCode encodes a user id into the deep-link payload used by /start.
func ReferralCode(userID int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10)))
}

func ParseReferralCode(code string) (int64, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(code))
	if err != nil {
		return 0, fmt.Errorf("referral code: %w", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("referral code: invalid user id %q", raw)
	}
	return id, nil
}
