package models

import (
	"time"
)

// MaxReferenceLen matches the size of CreditTransaction.Reference.
const MaxReferenceLen = 128

// CreditTransaction is the immutable audit row written for every balance mutation.
type CreditTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	Delta        int64     `gorm:"not null" json:"delta"`                // positive = credit, negative = debit
	Reason       string    `gorm:"size:30;not null;index" json:"reason"` // task_debit, task_refund, purchase, admin
	Reference    string    `gorm:"size:128;index" json:"reference"`      // task id or merchant order id
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
