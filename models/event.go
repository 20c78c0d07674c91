// models/event.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType enumerates the append-only ledger events external indexers
// consume.
type EventType string

const (
	EventGameCreated   EventType = "game_created"
	EventGameFunded    EventType = "game_funded"
	EventRewardClaimed EventType = "reward_claimed"
	EventRefunded      EventType = "refunded"
	EventGameEnded     EventType = "game_ended"
)

// GameEvent is one entry of the event ledger. Rows are only ever inserted.
type GameEvent struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	Type      EventType       `gorm:"type:varchar(32);not null;index" json:"type"`
	GameID    string          `gorm:"index;not null" json:"game_id"`
	UserID    string          `gorm:"index" json:"user_id,omitempty"`
	Amount    decimal.Decimal `gorm:"type:numeric(78,0)" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
