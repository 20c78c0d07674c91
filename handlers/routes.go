// handlers/routes.go
package handlers

import (
	"game-reward-engine/middleware"
	"game-reward-engine/services"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes wires the whole engine surface. Admin routes sit behind the
// admin capability token; participant routes require gateway user context
// and are gated by the pause switch; queries are public reads.
func SetupRoutes(
	app *fiber.App,
	adminToken string,
	pause *middleware.PauseSwitch,
	gameService *services.GameService,
	settlementService *services.SettlementService,
	treasuryService *services.TreasuryService,
) {
	// 🔓 Read-only queries
	app.Get("/games", gameService.GetActiveGames)
	app.Get("/games/count", gameService.GetGameCount)
	app.Get("/games/index/:index", gameService.GetGameIDAtIndex)
	app.Get("/games/:id", gameService.GetGameInfo)
	app.Get("/games/:id/details", gameService.GetGameDetails)
	app.Get("/games/:id/players", gameService.GetGamePlayers)
	app.Get("/games/:id/players/:userId", gameService.GetPlayerRecord)
	app.Get("/games/:id/events", gameService.GetGameEvents)
	app.Get("/players/:userId/games", gameService.GetPlayerGames)
	app.Get("/price/latest", settlementService.GetLatestPrice)

	// 🔐 Admin operations — capability token, never pause-gated.
	// Registered before the participant group so its root-level middleware
	// never shadows the admin prefix.
	admin := app.Group("/admin", middleware.AdminAuthMiddleware(adminToken))
	admin.Post("/games", gameService.CreateGame)
	admin.Post("/games/:id/fund", gameService.FundGame)
	admin.Patch("/games/:id/merkle-root", gameService.UpdateMerkleRoot)
	admin.Post("/games/:id/end", gameService.EndGame)
	admin.Get("/treasury", treasuryService.GetTreasury)
	admin.Post("/treasury/withdraw", treasuryService.WithdrawFees)
	admin.Post("/pause", pause.PauseHandler)
	admin.Post("/unpause", pause.UnpauseHandler)

	// 🔐 Participant routes — user context required; the mutating ones are
	// additionally gated by the circuit breaker (eligibility pre-check is a
	// pure read, so pausing does not block it).
	player := app.Group("/", middleware.UserContextMiddleware())
	player.Get("/games/:id/can-participate", gameService.CanParticipate)

	guarded := player.Group("/", pause.Gate())
	guarded.Post("/games/:id/join/quiz", settlementService.JoinQuiz)
	guarded.Post("/games/:id/join/prediction", settlementService.JoinCryptoPrediction)
	guarded.Post("/games/:id/refund", settlementService.ClaimRefund)
}
