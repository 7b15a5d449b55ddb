package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"spreadchecker/internal/models/db_models"
	"spreadchecker/pkg/utils"
)

type CompanyRepository interface {
	Insert(ctx context.Context, company *db_models.Company) error
	FindById(ctx context.Context, id string) (*db_models.Company, error)
	FindBySubscriptionRef(ctx context.Context, ref string) (*db_models.Company, error)
	// UpdateWithVersion writes the full row only if lock_version is still
	// the value the row was read with. A lost race returns ErrStateConflict.
	UpdateWithVersion(ctx context.Context, company *db_models.Company) error
	SaveCustomerRef(ctx context.Context, id string, customerRef string) error
	// FindLockCandidates returns unlocked companies whose trial or grace
	// period has lapsed without an active subscription.
	FindLockCandidates(ctx context.Context, now int64) ([]db_models.Company, error)
	// FindTrialReminderCandidates returns unlocked companies still inside
	// their trial, with no paid subscription yet.
	FindTrialReminderCandidates(ctx context.Context, now int64) ([]db_models.Company, error)
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{
		db: db,
	}
}

func (r *companyRepository) Insert(ctx context.Context, company *db_models.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *companyRepository) FindById(ctx context.Context, id string) (*db_models.Company, error) {
	var company db_models.Company
	err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &company, nil
}

func (r *companyRepository) FindBySubscriptionRef(ctx context.Context, ref string) (*db_models.Company, error) {
	var company db_models.Company
	err := r.db.WithContext(ctx).First(&company, "subscription_ref = ?", ref).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &company, nil
}

func (r *companyRepository) UpdateWithVersion(ctx context.Context, company *db_models.Company) error {
	readVersion := company.LockVersion
	company.LockVersion = readVersion + 1

	res := r.db.WithContext(ctx).
		Model(&db_models.Company{}).
		Where("id = ? AND lock_version = ?", company.ID, readVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(company)

	if res.Error != nil {
		company.LockVersion = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		company.LockVersion = readVersion
		return utils.ErrStateConflict
	}
	return nil
}

func (r *companyRepository) SaveCustomerRef(ctx context.Context, id string, customerRef string) error {
	return r.db.WithContext(ctx).
		Model(&db_models.Company{}).
		Where("id = ?", id).
		Update("customer_ref", customerRef).Error
}

func (r *companyRepository) FindTrialReminderCandidates(ctx context.Context, now int64) ([]db_models.Company, error) {
	var companies []db_models.Company
	err := r.db.WithContext(ctx).
		Where("account_locked = FALSE AND subscription_active = FALSE").
		Where("trial_ends_at IS NOT NULL AND trial_ends_at > ?", now).
		Find(&companies).Error

	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *companyRepository) FindLockCandidates(ctx context.Context, now int64) ([]db_models.Company, error) {
	var companies []db_models.Company
	err := r.db.WithContext(ctx).
		Where("account_locked = FALSE").
		Where("subscription_active = FALSE AND trial_ends_at IS NOT NULL AND trial_ends_at < ? OR scheduled_cancellation_date IS NOT NULL AND scheduled_cancellation_date < ?", now, now).
		Find(&companies).Error

	if err != nil {
		return nil, err
	}
	return companies, nil
}
