// services/helpers.go
package services

import (
	"errors"

	"game-reward-engine/models"
	"game-reward-engine/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var bpsDenominator = decimal.NewFromInt(models.BasisPointDenominator)

// applyBasisPoints computes floor(amount * bps / 10000). All reward and fee
// arithmetic truncates toward zero.
func applyBasisPoints(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(bpsDenominator).Floor()
}

// decodeRootChecked validates a 64-char hex digest.
func decodeRootChecked(root string) ([]byte, error) {
	return utils.DecodeRoot(root)
}

// treasuryForUpdate loads the singleton treasury row inside a transaction,
// creating it on first touch.
func treasuryForUpdate(tx *gorm.DB) (*models.TreasuryState, error) {
	var state models.TreasuryState
	err := tx.First(&state, "id = ?", models.TreasuryStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.TreasuryState{ID: models.TreasuryStateID, TotalPlatformFees: decimal.Zero}
		if err := tx.Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}
