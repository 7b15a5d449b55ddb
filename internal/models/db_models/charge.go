package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusPaid    ChargeStatus = "paid"
	ChargeStatusFailed  ChargeStatus = "failed"
)

type ChargePurpose string

const (
	ChargePurposeCheckout   ChargePurpose = "checkout"
	ChargePurposeSeatUpdate ChargePurpose = "seat_update"
	ChargePurposeAddon      ChargePurpose = "addon"
)

// Charge records a payment we asked the processor for: the initial checkout
// and the one-off prorated payments for mid-cycle seat or add-on changes.
// ProviderSessionID links the row to the processor session for webhook
// idempotency and operator follow-up.
type Charge struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"index"`

	AmountPence int64
	Currency    string        `gorm:"size:3;default:'GBP'"`
	Status      ChargeStatus  `gorm:"type:varchar(8);index"`
	Purpose     ChargePurpose `gorm:"type:varchar(16);index"`

	ProviderSessionID string `gorm:"index"`
	PaidAt            *int64

	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`

	Company Company `gorm:"foreignKey:CompanyID"`
}
