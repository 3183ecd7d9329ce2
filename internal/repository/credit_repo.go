package repository

import (
	"context"

	"creditbot/internal/models"

	"gorm.io/gorm"
)

// CreditRepository stores the credit audit trail. Rows are append-only.
type CreditRepository struct {
	db *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) WithTx(tx *gorm.DB) *CreditRepository {
	return &CreditRepository{db: tx}
}

func (r *CreditRepository) Append(ctx context.Context, tx *models.CreditTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *CreditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.CreditTransaction, error) {
	var list []models.CreditTransaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *CreditRepository) CountByReference(ctx context.Context, reason, ref string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("reason = ? AND reference = ?", reason, ref).Count(&n).Error
	return n, err
}
