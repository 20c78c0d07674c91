// services/treasury_service.go
package services

import (
	"errors"
	"log"

	"game-reward-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TreasuryService holds the platform-cut accumulator and the admin
// withdrawal path.
type TreasuryService struct {
	DB     *gorm.DB
	Lock   *EngineLock
	Payout PayoutSender

	// WalletID is where withdrawals are sent.
	WalletID string
}

func NewTreasuryService(db *gorm.DB, lock *EngineLock, payout PayoutSender, walletID string) *TreasuryService {
	return &TreasuryService{DB: db, Lock: lock, Payout: payout, WalletID: walletID}
}

// GetTreasury reports the uncollected platform fees (Admin only).
func (s *TreasuryService) GetTreasury(c *fiber.Ctx) error {
	var state models.TreasuryState
	if err := s.DB.First(&state, "id = ?", models.TreasuryStateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"total_platform_fees": decimal.Zero})
		}
		log.Printf("DB Error fetching treasury: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"total_platform_fees": state.TotalPlatformFees})
}

// WithdrawFees drains part of the accumulator to the treasury wallet
// (Admin only). A transfer failure rolls the decrement back.
func (s *TreasuryService) WithdrawFees(c *fiber.Ctx) error {
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

	ctx := c.Context()
	var remaining decimal.Decimal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := treasuryForUpdate(tx)
		if err != nil {
			return err
		}
		if state.TotalPlatformFees.LessThan(req.Amount) {
			return ErrExceedsAccumulatedFees
		}

		state.TotalPlatformFees = state.TotalPlatformFees.Sub(req.Amount)
		if err := tx.Model(state).Update("total_platform_fees", state.TotalPlatformFees).Error; err != nil {
			return err
		}

		s.Lock.BeginTransfer()
		err = s.Payout.Send(ctx, s.WalletID, req.Amount)
		s.Lock.EndTransfer()
		if err != nil {
			return err
		}

		remaining = state.TotalPlatformFees
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrExceedsAccumulatedFees) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, ErrTransferFailed) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("DB Error withdrawing fees: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to withdraw fees"})
	}

	return c.JSON(fiber.Map{"withdrawn": req.Amount, "total_platform_fees": remaining})
}
