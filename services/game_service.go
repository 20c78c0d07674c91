// services/game_service.go
package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"game-reward-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GameService owns game creation, funding, root updates, lifecycle
// transitions and every read-only query over the registry.
type GameService struct {
	DB   *gorm.DB
	Lock *EngineLock
}

func NewGameService(db *gorm.DB, lock *EngineLock) *GameService {
	return &GameService{DB: db, Lock: lock}
}

// --- Admin Handlers ---

// CreateGame creates a new game (Admin only). The id slot must be absent or
// still in its default not_started state; a slot that only ever received a
// merkle root update counts as default and is overwritten wholesale.
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	var req struct {
		ID               string          `json:"id"`
		Type             string          `json:"type"`
		MerkleRoot       string          `json:"merkle_root"`
		EntryFee         decimal.Decimal `json:"entry_fee"`
		RewardMultiplier int64           `json:"reward_multiplier"`
		PlatformFeeRate  int64           `json:"platform_fee_rate"`
		Deadline         time.Time       `json:"deadline"`
		PredictionType   string          `json:"prediction_type"`
		PriceMin         decimal.Decimal `json:"price_min"`
		PriceMax         decimal.Decimal `json:"price_max"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.ID == "" || !slug.IsSlug(req.ID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidGameID.Error()})
	}

	gameType := models.GameType(req.Type)
	if gameType != models.GameTypeQuiz && gameType != models.GameTypeCrypto {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be quiz or crypto"})
	}

	predictionType := models.PredictionType(req.PredictionType)
	if gameType == models.GameTypeCrypto {
		switch predictionType {
		case models.PredictionGreaterThan, models.PredictionLessThan, models.PredictionBetween:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prediction_type must be greater_than, less_than or between"})
		}
	}

	root := req.MerkleRoot
	if root == "" {
		root = models.ZeroMerkleRoot
	}
	if _, err := decodeRootChecked(root); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if !req.EntryFee.IsInteger() || req.EntryFee.Sign() < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entry_fee must be a non-negative integer value"})
	}
	if req.RewardMultiplier < 0 || req.PlatformFeeRate < 0 || req.PlatformFeeRate > models.BasisPointDenominator {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_multiplier and platform_fee_rate must be valid basis points"})
	}
	if req.Deadline.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "deadline is required"})
	}

	if err := s.Lock.Acquire(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	defer s.Lock.Release()

	game := models.Game{
		ID:               req.ID,
		Type:             gameType,
		Status:           models.GameStatusActive,
		MerkleRoot:       root,
		PredictionType:   predictionType,
		PriceMin:         req.PriceMin,
		PriceMax:         req.PriceMax,
		EntryFee:         req.EntryFee,
		RewardMultiplier: req.RewardMultiplier,
		PlatformFeeRate:  req.PlatformFeeRate,
		Deadline:         req.Deadline,
		FundedAmount:     decimal.Zero,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		slotExists := false
		var existing models.Game
		err := tx.First(&existing, "id = ?", req.ID).Error
		switch {
		case err == nil:
			if !existing.IsDefault() {
				return ErrGameExists
			}
			// Root-only slot: creation overwrites it entirely.
			slotExists = true
			game.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		var maxPos int64
		if err := tx.Model(&models.Game{}).Select("COALESCE(MAX(position), 0)").Scan(&maxPos).Error; err != nil {
			return err
		}
		game.Position = maxPos + 1

		if slotExists {
			err = tx.Save(&game).Error
		} else {
			err = tx.Create(&game).Error
		}
		if err != nil {
			return err
		}
		return appendEvent(tx, models.EventGameCreated, game.ID, "", decimal.Zero)
	})
	if err != nil {
		if errors.Is(err, ErrGameExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("DB Error creating game %s: %v", req.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create game"})
	}

	return c.Status(fiber.StatusCreated).JSON(game)
}

// FundGame adds value to an active game's pool (Admin only). No upper bound.
func (s *GameService) FundGame(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !req.Amount.IsInteger() || req.Amount.Sign() <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidAmount.Error()})
	}

	if err := s.Lock.Acquire(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	defer s.Lock.Release()

	var game models.Game
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&game, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGameNotFound
			}
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrGameNotActive
		}

		game.FundedAmount = game.FundedAmount.Add(req.Amount)
		if err := tx.Model(&models.Game{}).Where("id = ?", id).
			Update("funded_amount", game.FundedAmount).Error; err != nil {
			return err
		}
		return appendEvent(tx, models.EventGameFunded, id, "", req.Amount)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrGameNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrGameNotActive):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("DB Error funding game %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fund game"})
	}

	return c.JSON(fiber.Map{"id": id, "funded_amount": game.FundedAmount})
}

// UpdateMerkleRoot overwrites a game's answer-tree root (Admin only).
// Deliberately unconditional: no existence or status check. Writing to a
// never-created id leaves a default not_started slot holding only the root.
func (s *GameService) UpdateMerkleRoot(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		MerkleRoot string `json:"merkle_root"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := decodeRootChecked(req.MerkleRoot); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.Lock.Acquire(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	defer s.Lock.Release()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		err := tx.First(&game, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.Game{
				ID:           id,
				Status:       models.GameStatusNotStarted,
				MerkleRoot:   req.MerkleRoot,
				EntryFee:     decimal.Zero,
				FundedAmount: decimal.Zero,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&models.Game{}).Where("id = ?", id).
			Update("merkle_root", req.MerkleRoot).Error
	})
	if err != nil {
		log.Printf("DB Error updating merkle root for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update merkle root"})
	}

	return c.JSON(fiber.Map{"id": id, "merkle_root": req.MerkleRoot})
}

// EndGame transitions an active game to ended (Admin only). Fails while the
// deadline has not passed. Calling it again after the transition is a no-op.
func (s *GameService) EndGame(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.Lock.Acquire(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	defer s.Lock.Release()

	var game models.Game
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&game, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGameNotFound
			}
			return err
		}
		if !time.Now().After(game.Deadline) {
			return ErrDeadlineNotReached
		}
		if game.Status == models.GameStatusEnded {
			return nil // already ended, safe to call again
		}

		game.Status = models.GameStatusEnded
		if err := tx.Model(&models.Game{}).Where("id = ?", id).
			Update("status", models.GameStatusEnded).Error; err != nil {
			return err
		}
		return appendEvent(tx, models.EventGameEnded, id, "", decimal.Zero)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrGameNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrDeadlineNotReached):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("DB Error ending game %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to end game"})
	}

	return c.JSON(fiber.Map{"id": id, "status": game.Status})
}

// --- Read-only queries ---

// GetActiveGames lists active games in creation order, optionally filtered
// by ?type=quiz|crypto.
func (s *GameService) GetActiveGames(c *fiber.Ctx) error {
	query := s.DB.Where("status = ? AND position > 0", models.GameStatusActive)

	if t := c.Query("type"); t != "" {
		gameType := models.GameType(t)
		if gameType != models.GameTypeQuiz && gameType != models.GameTypeCrypto {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be quiz or crypto"})
		}
		query = query.Where("type = ?", gameType)
	}

	var games []models.Game
	if err := query.Order("position ASC").Find(&games).Error; err != nil {
		log.Printf("DB Error fetching active games: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch games"})
	}

	return c.JSON(games)
}

// GetGameCount returns the length of the ordered id list.
func (s *GameService) GetGameCount(c *fiber.Ctx) error {
	var count int64
	if err := s.DB.Model(&models.Game{}).Where("position > 0").Count(&count).Error; err != nil {
		log.Printf("DB Error counting games: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count games"})
	}
	return c.JSON(fiber.Map{"count": count})
}

// GetGameIDAtIndex returns the id at a zero-based position of the ordered
// id list.
func (s *GameService) GetGameIDAtIndex(c *fiber.Ctx) error {
	index, err := strconv.ParseInt(c.Params("index"), 10, 64)
	if err != nil || index < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid index"})
	}

	var game models.Game
	if err := s.DB.Where("position > 0").Order("position ASC").
		Offset(int(index)).Limit(1).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrIndexOutOfRange.Error()})
		}
		log.Printf("DB Error fetching game at index %d: %v", index, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{"index": index, "id": game.ID})
}

// GetGameInfo returns the basic public detail of one game.
func (s *GameService) GetGameInfo(c *fiber.Ctx) error {
	game, fiberErr := s.loadGame(c)
	if game == nil {
		return fiberErr
	}

	return c.JSON(fiber.Map{
		"id":         game.ID,
		"type":       game.Type,
		"status":     game.Status,
		"entry_fee":  game.EntryFee,
		"deadline":   game.Deadline,
		"created_at": game.CreatedAt,
	})
}

// GetGameDetails returns the extended detail, including economic terms and
// crypto bounds.
func (s *GameService) GetGameDetails(c *fiber.Ctx) error {
	game, fiberErr := s.loadGame(c)
	if game == nil {
		return fiberErr
	}

	var playerCount int64
	if err := s.DB.Model(&models.PlayerRecord{}).Where("game_id = ?", game.ID).Count(&playerCount).Error; err != nil {
		log.Printf("DB Error counting players for %s: %v", game.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{
		"id":                game.ID,
		"type":              game.Type,
		"status":            game.Status,
		"merkle_root":       game.MerkleRoot,
		"prediction_type":   game.PredictionType,
		"price_min":         game.PriceMin,
		"price_max":         game.PriceMax,
		"entry_fee":         game.EntryFee,
		"reward_multiplier": game.RewardMultiplier,
		"platform_fee_rate": game.PlatformFeeRate,
		"deadline":          game.Deadline,
		"funded_amount":     game.FundedAmount,
		"player_count":      playerCount,
		"created_at":        game.CreatedAt,
		"updated_at":        game.UpdatedAt,
	})
}

// GetGamePlayers returns the insertion-ordered participant list of a game.
func (s *GameService) GetGamePlayers(c *fiber.Ctx) error {
	game, fiberErr := s.loadGame(c)
	if game == nil {
		return fiberErr
	}

	var records []models.PlayerRecord
	if err := s.DB.Where("game_id = ?", game.ID).Order("position ASC").Find(&records).Error; err != nil {
		log.Printf("DB Error fetching players for %s: %v", game.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch players"})
	}

	players := make([]string, 0, len(records))
	for _, r := range records {
		players = append(players, r.UserID)
	}

	return c.JSON(fiber.Map{"game_id": game.ID, "players": players})
}

// GetPlayerRecord returns the participation record of one player in one game.
func (s *GameService) GetPlayerRecord(c *fiber.Ctx) error {
	game, fiberErr := s.loadGame(c)
	if game == nil {
		return fiberErr
	}
	userID := c.Params("userId")

	var record models.PlayerRecord
	if err := s.DB.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Absent record is the implicit default: nothing happened yet.
			return c.JSON(models.PlayerRecord{GameID: game.ID, UserID: userID})
		}
		log.Printf("DB Error fetching record %s/%s: %v", game.ID, userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(record)
}

// GetPlayerGames lists the games the authenticated player has joined, in
// join order.
func (s *GameService) GetPlayerGames(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user id required"})
	}

	var records []models.PlayerRecord
	if err := s.DB.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		log.Printf("DB Error fetching games for player %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch player games"})
	}

	gameIDs := make([]string, 0, len(records))
	for _, r := range records {
		gameIDs = append(gameIDs, r.GameID)
	}

	return c.JSON(fiber.Map{"user_id": userID, "games": gameIDs})
}

// CanParticipate is the eligibility pre-check for the authenticated player.
// Pure: it never mutates anything.
func (s *GameService) CanParticipate(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}

	game, fiberErr := s.loadGame(c)
	if game == nil {
		return fiberErr
	}

	reason := ""
	switch {
	case game.Status != models.GameStatusActive:
		reason = ErrGameNotActive.Error()
	case time.Now().After(game.Deadline):
		reason = ErrGameExpired.Error()
	default:
		var record models.PlayerRecord
		err := s.DB.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&record).Error
		if err == nil && record.Claimed {
			reason = ErrAlreadyClaimed.Error()
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("DB Error checking eligibility %s/%s: %v", game.ID, userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
	}

	return c.JSON(fiber.Map{
		"game_id":         game.ID,
		"user_id":         userID,
		"can_participate": reason == "",
		"reason":          reason,
	})
}

// GetGameEvents returns the append-only event feed of a game, oldest first.
func (s *GameService) GetGameEvents(c *fiber.Ctx) error {
	id := c.Params("id")

	var events []models.GameEvent
	if err := s.DB.Where("game_id = ?", id).Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		log.Printf("DB Error fetching events for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch events"})
	}

	return c.JSON(events)
}

// loadGame fetches the game for the :id route param, writing the error
// response itself when the game is missing. Callers must return the second
// value when the first is nil.
func (s *GameService) loadGame(c *fiber.Ctx) (*models.Game, error) {
	id := c.Params("id")

	var game models.Game
	if err := s.DB.First(&game, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrGameNotFound.Error()})
		}
		log.Printf("DB Error fetching game %s: %v", id, err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return &game, nil
}
