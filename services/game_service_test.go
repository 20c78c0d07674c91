package services_test

import (
	"encoding/json"
	"testing"
	"time"

	"game-reward-engine/models"
	"game-reward-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCreateGameValidation(t *testing.T) {
	e := newTestEngine(t)
	deadline := time.Now().Add(time.Hour)

	cases := []struct {
		name string
		body fiber.Map
	}{
		{"bad id", fiber.Map{"id": "Not A Slug!", "type": "quiz", "entry_fee": "1", "deadline": deadline}},
		{"bad type", fiber.Map{"id": "my-game", "type": "poker", "entry_fee": "1", "deadline": deadline}},
		{"bad root", fiber.Map{"id": "my-game", "type": "quiz", "merkle_root": "xyz", "entry_fee": "1", "deadline": deadline}},
		{"fractional fee", fiber.Map{"id": "my-game", "type": "quiz", "entry_fee": "1.5", "deadline": deadline}},
		{"missing deadline", fiber.Map{"id": "my-game", "type": "quiz", "entry_fee": "1"}},
		{"bad prediction type", fiber.Map{"id": "my-game", "type": "crypto", "entry_fee": "1", "deadline": deadline, "prediction_type": "sideways"}},
		{"fee rate over 100%", fiber.Map{"id": "my-game", "type": "quiz", "entry_fee": "1", "deadline": deadline, "platform_fee_rate": 10001}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.request(t, "POST", "/admin/games", tc.body, adminHeaders())
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestCreateGameRequiresAdmin(t *testing.T) {
	e := newTestEngine(t)

	resp := e.request(t, "POST", "/admin/games", fiber.Map{"id": "nope"}, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, "POST", "/admin/games", fiber.Map{"id": "nope"},
		map[string]string{"X-Admin-Token": "wrong-token"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateGameDuplicateFails(t *testing.T) {
	e := newTestEngine(t)
	root, _ := answerTree()
	deadline := time.Now().Add(time.Hour)

	e.createQuizGame(t, "unique-game", root, deadline)
	e.fundGame(t, "unique-game", weiTenPool)

	resp := e.request(t, "POST", "/admin/games", fiber.Map{
		"id":        "unique-game",
		"type":      "quiz",
		"entry_fee": "5",
		"deadline":  deadline,
	}, adminHeaders())
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The original game is untouched.
	var game models.Game
	require.NoError(t, e.db.First(&game, "id = ?", "unique-game").Error)
	require.Equal(t, weiEntryFee, game.EntryFee.String())
	require.Equal(t, weiTenPool, game.FundedAmount.String())
}

func TestFundGameLifecycle(t *testing.T) {
	e := newTestEngine(t)
	root, _ := answerTree()

	resp := e.request(t, "POST", "/admin/games/ghost/fund", fiber.Map{"amount": "1"}, adminHeaders())
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	e.createQuizGame(t, "fundable", root, time.Now().Add(time.Hour))
	e.fundGame(t, "fundable", "100")
	e.fundGame(t, "fundable", "50")
	require.Equal(t, "150", e.gameFunded(t, "fundable"))
	require.EqualValues(t, 2, e.eventCount(t, "fundable", models.EventGameFunded))

	// Ended games can no longer be funded.
	e.pastDeadline(t, "fundable")
	resp = e.request(t, "POST", "/admin/games/fundable/end", nil, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, "POST", "/admin/games/fundable/fund", fiber.Map{"amount": "1"}, adminHeaders())
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, services.ErrGameNotActive.Error(), body["error"])
}

func TestEndGameLifecycle(t *testing.T) {
	e := newTestEngine(t)
	root, _ := answerTree()

	e.createQuizGame(t, "endable", root, time.Now().Add(time.Hour))

	// Before the deadline ending always fails.
	resp := e.request(t, "POST", "/admin/games/endable/end", nil, adminHeaders())
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, services.ErrDeadlineNotReached.Error(), body["error"])

	e.pastDeadline(t, "endable")

	resp = e.request(t, "POST", "/admin/games/endable/end", nil, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var game models.Game
	require.NoError(t, e.db.First(&game, "id = ?", "endable").Error)
	require.Equal(t, models.GameStatusEnded, game.Status)

	// Calling again is safe and appends no second event.
	resp = e.request(t, "POST", "/admin/games/endable/end", nil, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.EqualValues(t, 1, e.eventCount(t, "endable", models.EventGameEnded))
}

func TestUpdateMerkleRootPermissive(t *testing.T) {
	e := newTestEngine(t)
	root, _ := answerTree()

	// Updating the root of a never-created game silently succeeds.
	resp := e.request(t, "PATCH", "/admin/games/future-game/merkle-root",
		fiber.Map{"merkle_root": root}, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The touched slot is not part of the game list.
	resp = e.request(t, "GET", "/games/count", nil, nil)
	body := decodeBody(t, resp)
	require.EqualValues(t, 0, body["count"])

	// Creation still succeeds on that slot.
	e.createQuizGame(t, "future-game", root, time.Now().Add(time.Hour))

	// And the root of an already-ended game can still be rewritten.
	e.pastDeadline(t, "future-game")
	resp = e.request(t, "POST", "/admin/games/future-game/end", nil, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, "PATCH", "/admin/games/future-game/merkle-root",
		fiber.Map{"merkle_root": models.ZeroMerkleRoot}, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var game models.Game
	require.NoError(t, e.db.First(&game, "id = ?", "future-game").Error)
	require.Equal(t, models.ZeroMerkleRoot, game.MerkleRoot)
	require.Equal(t, models.GameStatusEnded, game.Status)
}

func TestActiveGameQueries(t *testing.T) {
	e := newTestEngine(t)
	root, _ := answerTree()
	deadline := time.Now().Add(time.Hour)

	e.createQuizGame(t, "quiz-a", root, deadline)
	e.createCryptoGame(t, "crypto-b", "greater_than", "0", "0", deadline)
	e.createQuizGame(t, "quiz-c", root, deadline)

	e.pastDeadline(t, "quiz-c")
	resp := e.request(t, "POST", "/admin/games/quiz-c/end", nil, adminHeaders())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, "GET", "/games", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var games []models.Game
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&games))
	resp.Body.Close()
	require.Len(t, games, 2)
	require.Equal(t, "quiz-a", games[0].ID)
	require.Equal(t, "crypto-b", games[1].ID)

	resp = e.request(t, "GET", "/games?type=quiz", nil, nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&games))
	resp.Body.Close()
	require.Len(t, games, 1)
	require.Equal(t, "quiz-a", games[0].ID)

	resp = e.request(t, "GET", "/games/count", nil, nil)
	body := decodeBody(t, resp)
	require.EqualValues(t, 3, body["count"])

	resp = e.request(t, "GET", "/games/index/2", nil, nil)
	body = decodeBody(t, resp)
	require.Equal(t, "quiz-c", body["id"])

	resp = e.request(t, "GET", "/games/index/3", nil, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPlayersAndPlayerGames(t *testing.T) {
	e := newTestEngine(t)
	root, proof := answerTree()
	deadline := time.Now().Add(time.Hour)

	e.createQuizGame(t, "social-game", root, deadline)
	e.fundGame(t, "social-game", weiTenPool)

	for _, player := range []string{"alice", "bob", "carol"} {
		resp := e.request(t, "POST", "/games/social-game/join/quiz",
			joinQuizBody(proof, 3, weiEntryFee), playerHeaders(player))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := e.request(t, "GET", "/games/social-game/players", nil, nil)
	body := decodeBody(t, resp)
	players, ok := body["players"].([]interface{})
	require.True(t, ok)
	require.Equal(t, []interface{}{"alice", "bob", "carol"}, players)

	resp = e.request(t, "GET", "/players/bob/games", nil, nil)
	body = decodeBody(t, resp)
	require.Equal(t, []interface{}{"social-game"}, body["games"])

	// A stranger's record is the implicit default.
	resp = e.request(t, "GET", "/games/social-game/players/mallory", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	require.Equal(t, false, body["joined"])
	require.Equal(t, false, body["claimed"])
}

func TestCanParticipate(t *testing.T) {
	e := newTestEngine(t)
	root, proof := answerTree()

	e.createQuizGame(t, "open-game", root, time.Now().Add(time.Hour))
	e.fundGame(t, "open-game", weiTenPool)

	resp := e.request(t, "GET", "/games/open-game/can-participate", nil, playerHeaders("alice"))
	body := decodeBody(t, resp)
	require.Equal(t, true, body["can_participate"])

	joinResp := e.request(t, "POST", "/games/open-game/join/quiz",
		joinQuizBody(proof, 2, weiEntryFee), playerHeaders("alice"))
	require.Equal(t, fiber.StatusOK, joinResp.StatusCode)
	joinResp.Body.Close()

	resp = e.request(t, "GET", "/games/open-game/can-participate", nil, playerHeaders("alice"))
	body = decodeBody(t, resp)
	require.Equal(t, false, body["can_participate"])
	require.Equal(t, services.ErrAlreadyClaimed.Error(), body["reason"])

	// No user context at all is an auth failure.
	resp = e.request(t, "GET", "/games/open-game/can-participate", nil, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestGameEventFeed(t *testing.T) {
	e := newTestEngine(t)
	root, proof := answerTree()

	e.createQuizGame(t, "audited-game", root, time.Now().Add(time.Hour))
	e.fundGame(t, "audited-game", weiTenPool)

	resp := e.request(t, "POST", "/games/audited-game/join/quiz",
		joinQuizBody(proof, 2, weiEntryFee), playerHeaders("alice"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.request(t, "GET", "/games/audited-game/events", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var events []models.GameEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	resp.Body.Close()

	require.Len(t, events, 3)
	require.Equal(t, models.EventGameCreated, events[0].Type)
	require.Equal(t, models.EventGameFunded, events[1].Type)
	require.Equal(t, models.EventRewardClaimed, events[2].Type)
	require.Equal(t, "alice", events[2].UserID)
	require.Equal(t, "1425000000000000000", events[2].Amount.String())
}
