package db_models

import (
	"github.com/google/uuid"

	"spreadchecker/internal/billing"
)

// AddonItem is one recurring add-on subscription item, at most one per
// (company, addon type). The recurring price is synced to the seat count at
// time of purchase and only changes through a fresh prorated checkout.
type AddonItem struct {
	BaseModel
	CompanyID uuid.UUID         `gorm:"index:idx_company_addon,unique"`
	AddonType billing.AddonType `gorm:"type:varchar(32);index:idx_company_addon,unique"`

	// ItemRef is the processor's subscription or item identifier.
	ItemRef string `gorm:"index"`

	RecurringPricePence int64
	SeatCountAtPurchase int
	Active              bool `gorm:"default:true"`

	Company Company `gorm:"foreignKey:CompanyID"`
}
