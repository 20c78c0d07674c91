package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"game-reward-engine/handlers"
	"game-reward-engine/middleware"
	"game-reward-engine/models"
	"game-reward-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOriginsString,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID, X-Admin-Token, X-Request-ID",
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Game{},
		&models.PlayerRecord{},
		&models.TreasuryState{},
		&models.GameEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	adminToken := os.Getenv("ADMIN_SERVICE_TOKEN")
	if adminToken == "" {
		log.Fatal("ADMIN_SERVICE_TOKEN environment variable not set")
	}

	priceFeedURL := os.Getenv("PRICE_FEED_URL")
	if priceFeedURL == "" {
		log.Fatal("PRICE_FEED_URL environment variable not set")
	}

	payoutURL := os.Getenv("PAYOUT_SERVICE_URL")
	if payoutURL == "" {
		log.Fatal("PAYOUT_SERVICE_URL environment variable not set")
	}
	payoutToken := os.Getenv("PAYOUT_SERVICE_TOKEN")
	if payoutToken == "" {
		log.Fatal("PAYOUT_SERVICE_TOKEN environment variable not set")
	}

	treasuryWallet := os.Getenv("TREASURY_WALLET_ID")
	if treasuryWallet == "" {
		log.Fatal("TREASURY_WALLET_ID environment variable not set")
	}

	lock := services.NewEngineLock()
	priceFeed := services.NewPriceFeedClient(priceFeedURL)
	payout := services.NewPayoutClient(payoutURL, payoutToken)

	gameService := services.NewGameService(db, lock)
	settlementService := services.NewSettlementService(db, lock, priceFeed, payout)
	treasuryService := services.NewTreasuryService(db, lock, payout, treasuryWallet)

	pause := middleware.NewPauseSwitch()

	gameService.StartSolvencyAudit()

	handlers.SetupRoutes(app, adminToken, pause, gameService, settlementService, treasuryService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Solvency audit job running (every 5m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
