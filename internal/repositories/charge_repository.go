package repositories

import (
	"context"

	"gorm.io/gorm"

	"spreadchecker/internal/models/db_models"
)

type ChargeRepository interface {
	Insert(ctx context.Context, charge *db_models.Charge) error
	MarkPaid(ctx context.Context, sessionID string, paidAt int64) error
}

type chargeRepository struct {
	db *gorm.DB
}

func NewChargeRepository(db *gorm.DB) ChargeRepository {
	return &chargeRepository{
		db: db,
	}
}

func (r *chargeRepository) Insert(ctx context.Context, charge *db_models.Charge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

func (r *chargeRepository) MarkPaid(ctx context.Context, sessionID string, paidAt int64) error {
	return r.db.WithContext(ctx).
		Model(&db_models.Charge{}).
		Where("provider_session_id = ? AND status = ?", sessionID, db_models.ChargeStatusPending).
		Updates(map[string]interface{}{
			"status":  db_models.ChargeStatusPaid,
			"paid_at": paidAt,
		}).Error
}
