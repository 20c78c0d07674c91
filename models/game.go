// models/game.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameType distinguishes quiz games (merkle-verified answers) from
// crypto games (price-feed predictions).
type GameType string

const (
	GameTypeQuiz   GameType = "quiz"
	GameTypeCrypto GameType = "crypto"
)

// GameStatus is the lifecycle state of a game. It only ever advances:
// not_started → active → ended. "expired" belongs to the taxonomy but no
// documented transition produces it.
type GameStatus string

const (
	GameStatusNotStarted GameStatus = "not_started"
	GameStatusActive     GameStatus = "active"
	GameStatusEnded      GameStatus = "ended"
	GameStatusExpired    GameStatus = "expired"
)

// PredictionType selects the win rule for crypto games.
type PredictionType string

const (
	PredictionGreaterThan PredictionType = "greater_than"
	PredictionLessThan    PredictionType = "less_than"
	PredictionBetween     PredictionType = "between"
)

// BasisPointDenominator is the fixed denominator for fee rates and
// reward multipliers (100 bps = 1%).
const BasisPointDenominator = 10_000

// ZeroMerkleRoot is the 32-byte zero digest, used by crypto games that
// carry no answer tree.
const ZeroMerkleRoot = "0000000000000000000000000000000000000000000000000000000000000000"

type Game struct {
	ID     string     `gorm:"primaryKey" json:"id"`
	Type   GameType   `gorm:"type:varchar(16);not null" json:"type"`
	Status GameStatus `gorm:"type:varchar(16);not null;default:'not_started';index" json:"status"`

	// 🧩 Quiz configuration
	MerkleRoot string `gorm:"type:varchar(64);not null;default:''" json:"merkle_root"`

	// 📈 Crypto configuration — stored inertly on quiz games too (shared shape)
	PredictionType PredictionType  `gorm:"type:varchar(16)" json:"prediction_type,omitempty"`
	PriceMin       decimal.Decimal `gorm:"type:numeric(78,18)" json:"price_min"`
	PriceMax       decimal.Decimal `gorm:"type:numeric(78,18)" json:"price_max"`

	// 💰 Economic terms, immutable after creation
	EntryFee         decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"entry_fee"`
	RewardMultiplier int64           `gorm:"not null" json:"reward_multiplier"` // basis points
	PlatformFeeRate  int64           `gorm:"not null" json:"platform_fee_rate"` // basis points

	Deadline time.Time `gorm:"not null" json:"deadline"`

	// FundedAmount is the pool available to pay rewards. Never negative.
	FundedAmount decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"funded_amount"`

	// Position preserves global creation order for the ordered id list.
	// Zero means the slot was touched (e.g. by a root update) but the game
	// was never created, so it is not part of the list.
	Position int64 `gorm:"not null;default:0;index" json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDefault reports whether the row is still an untouched slot from the
// registry's point of view: updateMerkleRoot may have written a root into
// it, but until creation it stays not_started and creation may overwrite it.
func (g *Game) IsDefault() bool {
	return g.Status == GameStatusNotStarted
}
