package repository

import (
	"context"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) LockByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) HasPending(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("user_id = ? AND status = ?", userID, domain.WithdrawalStatusPending).Count(&n).Error
	return n > 0, err
}

// Process moves a pending withdrawal to its final status.
func (r *WithdrawalRepository) Process(ctx context.Context, id uint, status string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, domain.WithdrawalStatusPending).
		Updates(map[string]interface{}{"status": status, "processed_at": now, "updated_at": now})
	return res.RowsAffected == 1, res.Error
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, limit int) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

// SumByStatus totals a user's withdrawals in the given status.
func (r *WithdrawalRepository) SumByStatus(ctx context.Context, userID int64, status string) (decimal.Decimal, error) {
	var row struct{ Total decimal.NullDecimal }
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("SUM(amount) AS total").Where("user_id = ? AND status = ?", userID, status).Scan(&row).Error
	if err != nil || !row.Total.Valid {
		return decimal.Zero, err
	}
	return row.Total.Decimal, nil
}
