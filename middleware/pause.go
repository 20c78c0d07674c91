// middleware/pause.go
package middleware

import (
	"log"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
)

// PauseSwitch is the circuit breaker for participant-facing operations.
// Admin operations (creation, funding, lifecycle, fee withdrawal) are never
// gated by it.
type PauseSwitch struct {
	paused atomic.Bool
}

func NewPauseSwitch() *PauseSwitch {
	return &PauseSwitch{}
}

func (p *PauseSwitch) Paused() bool { return p.paused.Load() }

// Gate rejects guarded participant operations while the engine is paused.
func (p *PauseSwitch) Gate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p.paused.Load() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "engine is paused",
			})
		}
		return c.Next()
	}
}

// PauseHandler and UnpauseHandler toggle the breaker (admin routes).
func (p *PauseSwitch) PauseHandler(c *fiber.Ctx) error {
	p.paused.Store(true)
	log.Printf("[PAUSE] engine paused")
	return c.JSON(fiber.Map{"paused": true})
}

func (p *PauseSwitch) UnpauseHandler(c *fiber.Ctx) error {
	p.paused.Store(false)
	log.Printf("[PAUSE] engine unpaused")
	return c.JSON(fiber.Map{"paused": false})
}
