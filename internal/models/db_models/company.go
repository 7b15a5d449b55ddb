package db_models

import (
	"gorm.io/datatypes"

	"spreadchecker/internal/billing"
)

// Company is the authoritative subscription record for one tenant. It is only
// mutated through the lifecycle service and the versioned repository write;
// rows are soft-deleted at most, cancellation history is kept forever.
type Company struct {
	BaseModel
	Name string

	SubscriptionStatus billing.SubscriptionStatus `gorm:"type:varchar(16);index;default:'trialing'"`
	// SubscriptionType is nil while trialing; set on first activation.
	SubscriptionType   *billing.BillingPeriod `gorm:"type:varchar(8)"`
	SubscriptionActive bool

	AccountLocked bool
	LockedAt      *int64

	// TrialEndsAt is signup + 60 days; forced to "now" on activation or
	// trial cancellation.
	TrialEndsAt *int64

	// Seat allocation. Usage (active members) must never exceed it except
	// transiently during a pending downgrade.
	AdminSeats        int `gorm:"default:1"`
	JuniorSeats       int
	SubscriptionSeats int

	// SubscriptionPricePence is the recurring charge for one billing period
	// of SubscriptionType, ex VAT.
	SubscriptionPricePence int64

	GracePeriodUsed           bool
	CancelAtPeriodEnd         bool
	ScheduledCancellationDate *int64
	CancelledAt               *int64
	CancellationReason        *string
	CancellationFeedback      *string

	SubscriptionStartedAt *int64

	// External processor identifiers.
	CustomerRef     string `gorm:"index"`
	SubscriptionRef string `gorm:"index"`

	// LockVersion serialises concurrent writes: updates only apply when the
	// stored version still matches the one that was read.
	LockVersion int64 `gorm:"default:0"`

	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`

	Members []Member `gorm:"foreignKey:CompanyID"`
	Addons  []AddonItem
}
