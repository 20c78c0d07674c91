// services/scheduler.go
package services

import (
	"log"
	"time"

	"game-reward-engine/models"

	"github.com/go-co-op/gocron/v2"
)

// StartSolvencyAudit logs the aggregate pool balance and the fee
// accumulator every few minutes. Observation only — expiry and lifecycle
// transitions are never triggered from here; an admin has to end games
// explicitly.
func (s *GameService) StartSolvencyAudit() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			var totalPool string
			err := s.DB.Model(&models.Game{}).
				Select("COALESCE(SUM(funded_amount), 0)").Scan(&totalPool).Error
			if err != nil {
				log.Printf("[Audit] DB error summing pools: %v", err)
				return
			}

			var state models.TreasuryState
			fees := "0"
			if err := s.DB.First(&state, "id = ?", models.TreasuryStateID).Error; err == nil {
				fees = state.TotalPlatformFees.String()
			}

			var pastDeadline int64
			_ = s.DB.Model(&models.Game{}).
				Where("status = ? AND deadline < ?", models.GameStatusActive, time.Now()).
				Count(&pastDeadline).Error

			log.Printf("[Audit] total pool=%s platform fees=%s active games past deadline=%d",
				totalPool, fees, pastDeadline)
		}),
	)
}
