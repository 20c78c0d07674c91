// models/player_record.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlayerRecord is the per-(game, player) participation ledger entry.
// It is created on the player's first successful join and is terminal once
// Claimed is set: every later join attempt for the same game fails.
type PlayerRecord struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	GameID string `gorm:"uniqueIndex:idx_game_player;not null" json:"game_id"`
	UserID string `gorm:"uniqueIndex:idx_game_player;index;not null" json:"user_id"`

	Joined   bool `gorm:"not null;default:false" json:"joined"`
	Claimed  bool `gorm:"not null;default:false" json:"claimed"`
	Refunded bool `gorm:"not null;default:false" json:"refunded"`

	// Prediction holds the submitted value for crypto games; unused for quiz.
	Prediction decimal.Decimal `gorm:"type:numeric(78,18)" json:"prediction"`

	// RewardPaid is the amount actually transferred (zero on a loss).
	RewardPaid decimal.Decimal `gorm:"type:numeric(78,0)" json:"reward_paid"`

	// Position is the per-game join ordinal; the ordered participant list
	// is the records of a game sorted by it.
	Position int `gorm:"not null" json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
