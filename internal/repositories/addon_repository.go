package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"spreadchecker/internal/billing"
	"spreadchecker/internal/models/db_models"
)

type AddonRepository interface {
	Insert(ctx context.Context, addon *db_models.AddonItem) error
	Update(ctx context.Context, addon *db_models.AddonItem) error
	FindByCompanyAndType(ctx context.Context, companyID uuid.UUID, addonType billing.AddonType) (*db_models.AddonItem, error)
	ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]db_models.AddonItem, error)
}

type addonRepository struct {
	db *gorm.DB
}

func NewAddonRepository(db *gorm.DB) AddonRepository {
	return &addonRepository{
		db: db,
	}
}

func (r *addonRepository) Insert(ctx context.Context, addon *db_models.AddonItem) error {
	return r.db.WithContext(ctx).Create(addon).Error
}

func (r *addonRepository) Update(ctx context.Context, addon *db_models.AddonItem) error {
	return r.db.WithContext(ctx).Save(addon).Error
}

func (r *addonRepository) FindByCompanyAndType(ctx context.Context, companyID uuid.UUID, addonType billing.AddonType) (*db_models.AddonItem, error) {
	var addon db_models.AddonItem
	err := r.db.WithContext(ctx).
		First(&addon, "company_id = ? AND addon_type = ?", companyID, addonType).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &addon, nil
}

func (r *addonRepository) ListActiveByCompany(ctx context.Context, companyID uuid.UUID) ([]db_models.AddonItem, error) {
	var addons []db_models.AddonItem
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND active = TRUE", companyID).
		Find(&addons).Error

	if err != nil {
		return nil, err
	}
	return addons, nil
}
