// models/treasury.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreasuryStateID is the primary key of the singleton treasury row.
const TreasuryStateID = 1

// TreasuryState accumulates uncollected platform cuts across all games.
// Exactly one row exists; admin withdrawal decrements it.
type TreasuryState struct {
	ID                int             `gorm:"primaryKey" json:"id"`
	TotalPlatformFees decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"total_platform_fees"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (TreasuryState) TableName() string { return "treasury_state" }
