package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"spreadchecker/internal/models/db_models"
)

type MemberRepository interface {
	Insert(ctx context.Context, member *db_models.Member) error
	Update(ctx context.Context, member *db_models.Member) error
	FindById(ctx context.Context, id string) (*db_models.Member, error)
	FindByEmail(ctx context.Context, email string) (*db_models.Member, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]db_models.Member, error)
	// CountActiveByRole returns current seat usage per role. Usage is what
	// seat reductions are validated against.
	CountActiveByRole(ctx context.Context, companyID uuid.UUID) (admins int, juniors int, err error)
}

type memberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{
		db: db,
	}
}

func (r *memberRepository) Insert(ctx context.Context, member *db_models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepository) Update(ctx context.Context, member *db_models.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *memberRepository) FindById(ctx context.Context, id string) (*db_models.Member, error) {
	var member db_models.Member
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &member, nil
}

func (r *memberRepository) FindByEmail(ctx context.Context, email string) (*db_models.Member, error) {
	var member db_models.Member
	err := r.db.WithContext(ctx).First(&member, "email = ?", email).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &member, nil
}

func (r *memberRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]db_models.Member, error) {
	var members []db_models.Member
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&members).Error

	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *memberRepository) CountActiveByRole(ctx context.Context, companyID uuid.UUID) (int, int, error) {
	type roleCount struct {
		RoleType db_models.MemberRole
		Count    int64
	}
	var counts []roleCount

	err := r.db.WithContext(ctx).
		Model(&db_models.Member{}).
		Select("role_type, COUNT(*) as count").
		Where("company_id = ? AND is_active = TRUE", companyID).
		Group("role_type").
		Scan(&counts).Error

	if err != nil {
		return 0, 0, err
	}

	var admins, juniors int
	for _, rc := range counts {
		switch rc.RoleType {
		case db_models.RoleAdmin:
			admins = int(rc.Count)
		case db_models.RoleJunior:
			juniors = int(rc.Count)
		}
	}
	return admins, juniors, nil
}
