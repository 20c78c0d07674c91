package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"game-reward-engine/handlers"
	"game-reward-engine/middleware"
	"game-reward-engine/models"
	"game-reward-engine/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAdminToken = "test-admin-token"

type stubFeed struct {
	price decimal.Decimal
	err   error
}

func (f *stubFeed) LatestRoundData(ctx context.Context) (*services.RoundData, error) {
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return &services.RoundData{RoundID: 7, Price: f.price, StartedAt: now, UpdatedAt: now, AnsweredInRound: 7}, nil
}

func (f *stubFeed) RoundData(ctx context.Context, roundID uint64) (*services.RoundData, error) {
	return f.LatestRoundData(ctx)
}

type payoutCall struct {
	userID string
	amount decimal.Decimal
}

type stubPayout struct {
	err   error
	calls []payoutCall
}

func (p *stubPayout) Send(ctx context.Context, userID string, amount decimal.Decimal) error {
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, payoutCall{userID: userID, amount: amount})
	return nil
}

type testEngine struct {
	app    *fiber.App
	db     *gorm.DB
	feed   *stubFeed
	payout *stubPayout
	pause  *middleware.PauseSwitch
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so every session sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Game{},
		&models.PlayerRecord{},
		&models.TreasuryState{},
		&models.GameEvent{},
	))

	lock := services.NewEngineLock()
	feed := &stubFeed{}
	payout := &stubPayout{}

	gameService := services.NewGameService(db, lock)
	settlementService := services.NewSettlementService(db, lock, feed, payout)
	treasuryService := services.NewTreasuryService(db, lock, payout, "treasury-wallet")

	pause := middleware.NewPauseSwitch()

	app := fiber.New()
	handlers.SetupRoutes(app, testAdminToken, pause, gameService, settlementService, treasuryService)

	return &testEngine{app: app, db: db, feed: feed, payout: payout, pause: pause}
}

func (e *testEngine) request(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": testAdminToken}
}

func playerHeaders(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// --- state probes ---

func (e *testEngine) gameFunded(t *testing.T, id string) string {
	t.Helper()
	var g models.Game
	require.NoError(t, e.db.First(&g, "id = ?", id).Error)
	return g.FundedAmount.String()
}

func (e *testEngine) treasuryTotal(t *testing.T) string {
	t.Helper()
	var state models.TreasuryState
	err := e.db.First(&state, "id = ?", models.TreasuryStateID).Error
	if err == gorm.ErrRecordNotFound {
		return "0"
	}
	require.NoError(t, err)
	return state.TotalPlatformFees.String()
}

func (e *testEngine) playerRecord(t *testing.T, gameID, userID string) (models.PlayerRecord, bool) {
	t.Helper()
	var record models.PlayerRecord
	err := e.db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return record, false
	}
	require.NoError(t, err)
	return record, true
}

func (e *testEngine) eventCount(t *testing.T, gameID string, eventType models.EventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&models.GameEvent{}).
		Where("game_id = ? AND type = ?", gameID, eventType).Count(&count).Error)
	return count
}

// --- fixtures ---

const (
	weiEntryFee = "1000000000000000000"  // 1e18
	weiTenPool  = "10000000000000000000" // 1e19
)

func (e *testEngine) createQuizGame(t *testing.T, id, root string, deadline time.Time) {
	t.Helper()
	resp := e.request(t, "POST", "/admin/games", fiber.Map{
		"id":                id,
		"type":              "quiz",
		"merkle_root":       root,
		"entry_fee":         weiEntryFee,
		"reward_multiplier": 15000,
		"platform_fee_rate": 500,
		"deadline":          deadline,
	}, adminHeaders())
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func (e *testEngine) createCryptoGame(t *testing.T, id, predictionType, priceMin, priceMax string, deadline time.Time) {
	t.Helper()
	resp := e.request(t, "POST", "/admin/games", fiber.Map{
		"id":                id,
		"type":              "crypto",
		"entry_fee":         weiEntryFee,
		"reward_multiplier": 15000,
		"platform_fee_rate": 500,
		"deadline":          deadline,
		"prediction_type":   predictionType,
		"price_min":         priceMin,
		"price_max":         priceMax,
	}, adminHeaders())
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func (e *testEngine) fundGame(t *testing.T, id, amount string) {
	t.Helper()
	resp := e.request(t, "POST", "/admin/games/"+id+"/fund", fiber.Map{"amount": amount}, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (e *testEngine) pastDeadline(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Game{}).Where("id = ?", id).
		Update("deadline", time.Now().Add(-time.Hour)).Error)
}
