package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal is a referral earnings payout request reviewed by an admin.
type Withdrawal struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      int64           `gorm:"not null;index" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Details     string          `gorm:"size:255;not null" json:"details"`
	Status      string          `gorm:"size:20;not null;index" json:"status"` // pending, completed, rejected
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ProcessedAt *time.Time      `json:"processed_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
