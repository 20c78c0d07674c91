// services/events.go
package services

import (
	"game-reward-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// appendEvent inserts one ledger event inside the caller's transaction so
// the event commits or rolls back together with the state change it reports.
func appendEvent(tx *gorm.DB, eventType models.EventType, gameID, userID string, amount decimal.Decimal) error {
	return tx.Create(&models.GameEvent{
		ID:     uuid.NewString(),
		Type:   eventType,
		GameID: gameID,
		UserID: userID,
		Amount: amount,
	}).Error
}
