package db_models

import "github.com/google/uuid"

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleJunior MemberRole = "junior"
)

// Member occupies one licensed seat while active. Deactivating a member frees
// the seat but never shrinks the company's allocation; that is an explicit
// paid change.
type Member struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"index"`

	Email        string `gorm:"uniqueIndex"`
	FullName     string
	PasswordHash string

	RoleType MemberRole `gorm:"type:varchar(8);index"`
	IsActive bool       `gorm:"default:false"`

	Company Company `gorm:"foreignKey:CompanyID"`
}
