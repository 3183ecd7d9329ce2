package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is keyed by the Telegram user id. Rows are never deleted.
type User struct {
	ID               int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username         string          `gorm:"size:64" json:"username"`
	Credits          int64           `gorm:"not null;default:0" json:"credits"`
	AcceptedRules    bool            `gorm:"not null;default:false" json:"accepted_rules"`
	PendingTaskID    *string         `gorm:"size:128;uniqueIndex" json:"pending_task_id"`
	ReferrerID       *int64          `gorm:"index" json:"referrer_id"`
	ReferralEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"referral_earnings"`
	LastUsedAt       *time.Time      `json:"last_used_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HasPendingTask() bool { return u.PendingTaskID != nil && *u.PendingTaskID != "" }
