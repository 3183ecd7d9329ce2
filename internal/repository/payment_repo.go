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

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByMerchantOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("merchant_order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) LockByMerchantOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_order_id = ?", orderID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePending removes a payment that never reached the gateway. Settled rows are kept.
func (r *PaymentRepository) DeletePending(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, domain.PaymentStatusPending).
		Delete(&models.Payment{}).Error
}

// SetGatewayOrderID records the gateway's id once; a webhook may have set it first.
func (r *PaymentRepository) SetGatewayOrderID(ctx context.Context, id uint, gatewayOrderID string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND gateway_order_id IS NULL", id).
		Update("gateway_order_id", gatewayOrderID).Error
}

// Transition moves a pending payment to a terminal status. It reports whether the row changed.
func (r *PaymentRepository) Transition(ctx context.Context, id uint, status string, gatewayOrderID string) (bool, error) {
	fields := map[string]interface{}{"status": status, "updated_at": time.Now()}
	if status == domain.PaymentStatusPaid {
		fields["paid_at"] = time.Now()
	}
	q := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentStatusPending)
	res := q.Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	if gatewayOrderID != "" {
		if err := r.SetGatewayOrderID(ctx, id, gatewayOrderID); err != nil {
			return false, err
		}
	}
	return res.RowsAffected == 1, nil
}

// PaidAmountsByCurrency sums paid payments per currency.
func (r *PaymentRepository) PaidAmountsByCurrency(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Currency string
		Total    decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("currency, SUM(amount) AS total").
		Where("status = ?", domain.PaymentStatusPaid).
		Group("currency").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Currency] = row.Total
	}
	return out, nil
}

func (r *PaymentRepository) CountPaid(ctx context.Context) (payments int64, users int64, err error) {
	db := r.db.WithContext(ctx).Model(&models.Payment{}).Where("status = ?", domain.PaymentStatusPaid)
	if err = db.Count(&payments).Error; err != nil {
		return
	}
	err = r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ?", domain.PaymentStatusPaid).
		Distinct("user_id").Count(&users).Error
	return
}
