package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          int64           `gorm:"not null;index" json:"user_id"`
	MerchantOrderID string          `gorm:"size:64;not null;uniqueIndex" json:"merchant_order_id"`
	GatewayOrderID  *string         `gorm:"size:128;uniqueIndex" json:"gateway_order_id"`
	PackageID       int             `gorm:"not null" json:"package_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency        string          `gorm:"size:10;not null" json:"currency"`
	Method          string          `gorm:"size:20" json:"method"`
	Credits         int64           `gorm:"not null" json:"credits"`
	Status          string          `gorm:"size:20;not null;index" json:"status"` // pending, paid, failed, canceled
	PaidAt          *time.Time      `json:"paid_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsPending() bool { return p.Status == "pending" }
