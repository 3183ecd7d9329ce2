package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralTransaction records one commission. PaymentID is unique: a payment pays
// commission at most once.
type ReferralTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ReferrerID  int64           `gorm:"not null;index" json:"referrer_id"`
	ReferralID  int64           `gorm:"not null;index" json:"referral_id"`
	PaymentID   uint            `gorm:"not null;uniqueIndex" json:"payment_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status      string          `gorm:"size:20;not null" json:"status"`
	ProcessedAt time.Time       `json:"processed_at"`
}

func (ReferralTransaction) TableName() string { return "referral_transactions" }
