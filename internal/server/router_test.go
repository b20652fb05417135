package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"si-monitor/internal/display"
	"si-monitor/internal/game"
	"si-monitor/internal/handler"
	"si-monitor/internal/service/observer"
	"si-monitor/pkg/errno"
)

type fakeSync struct{}

func (fakeSync) Stats() observer.Stats {
	return observer.Stats{State: "RUNNING", LastBlock: 9, Tip: 10}
}

func (fakeSync) Gas() observer.GasStats {
	return observer.GasStats{BaseFee: observer.GasView{History: "_.-", Wei: "7"}}
}

var testOverlay = common.HexToHash("0xa000000000000000000000000000000000000000000000000000000000000001")

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := display.NewRecorder(10)
	g := game.New(game.Params{BlocksPerRound: 8, CommitPhaseBlocks: 2, RevealPhaseBlocks: 2}, rec, nil)
	b8 := game.BlockDetails{Number: 8, Timestamp: 40_000}
	g.NewBlock(b8, nil)
	g.Commit(testOverlay, common.HexToAddress("0xaa"), b8)
	g.NewBlock(game.BlockDetails{Number: 9, Timestamp: 45_000}, nil)

	return NewHTTPRouter(handler.NewGameHandler(g, fakeSync{}, rec))
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRouter_Health(t *testing.T) {
	r := setupRouter(t)
	w, env := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, errno.OK.Code, env.Code)
	assert.Contains(t, string(env.Data), `"status":"UP"`)
}

func TestRouter_Metrics(t *testing.T) {
	r := setupRouter(t)
	get(t, r, "/health")

	w, _ := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "si_current_round")
	assert.Contains(t, w.Body.String(), "si_http_requests_total")
}

func TestRouter_Sync(t *testing.T) {
	r := setupRouter(t)
	w, env := get(t, r, "/api/v1/sync")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Sync observer.Stats `json:"sync"`
		Game game.Snapshot  `json:"game"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "RUNNING", data.Sync.State)
	assert.Equal(t, uint64(1), data.Game.CurrentRound)
	assert.Equal(t, 1, data.Game.Players)
}

func TestRouter_Rounds(t *testing.T) {
	r := setupRouter(t)

	w, env := get(t, r, "/api/v1/rounds?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	var rounds []game.RoundView
	require.NoError(t, json.Unmarshal(env.Data, &rounds))
	require.Len(t, rounds, 1)
	assert.Equal(t, uint64(1), rounds[0].ID)
	assert.Equal(t, 1, rounds[0].Commits)

	w, env = get(t, r, "/api/v1/rounds?limit=0")
	assert.Equal(t, http.StatusOK, w.Code, "limit=0 falls back to default")

	w, env = get(t, r, "/api/v1/rounds?limit=5000")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrBadRequest.Code, env.Code)
}

func TestRouter_Round(t *testing.T) {
	r := setupRouter(t)

	w, env := get(t, r, "/api/v1/rounds/1")
	require.Equal(t, http.StatusOK, w.Code)
	var round game.RoundView
	require.NoError(t, json.Unmarshal(env.Data, &round))
	assert.Equal(t, []string{testOverlay.Hex()}, round.Players)

	w, env = get(t, r, "/api/v1/rounds/99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errno.ErrRoundNotFound.Code, env.Code)

	w, env = get(t, r, "/api/v1/rounds/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrBadRequest.Code, env.Code)
}

func TestRouter_Players(t *testing.T) {
	r := setupRouter(t)

	w, env := get(t, r, "/api/v1/players")
	require.Equal(t, http.StatusOK, w.Code)
	var players []game.PlayerView
	require.NoError(t, json.Unmarshal(env.Data, &players))
	require.Len(t, players, 1)
	assert.Equal(t, testOverlay.Hex(), players[0].Overlay)

	// 不带 0x 也可以
	w, env = get(t, r, "/api/v1/players/"+strings.TrimPrefix(testOverlay.Hex(), "0x"))
	require.Equal(t, http.StatusOK, w.Code)
	var p game.PlayerView
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 1, p.PlayCount)

	w, env = get(t, r, "/api/v1/players/0x"+strings.Repeat("b", 64))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errno.ErrPlayerNotFound.Code, env.Code)

	w, env = get(t, r, "/api/v1/players/0x1234")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrBadRequest.Code, env.Code)
}

func TestRouter_GasAndDisplay(t *testing.T) {
	r := setupRouter(t)

	w, env := get(t, r, "/api/v1/gas")
	require.Equal(t, http.StatusOK, w.Code)
	var gas observer.GasStats
	require.NoError(t, json.Unmarshal(env.Data, &gas))
	assert.Equal(t, "7", gas.BaseFee.Wei)

	w, env = get(t, r, "/api/v1/display")
	require.Equal(t, http.StatusOK, w.Code)
	var snap display.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.NotEmpty(t, snap.Rounds)
}

func TestRouter_DisplayDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := game.New(game.Params{BlocksPerRound: 8}, display.NewRecorder(0), nil)
	r := NewHTTPRouter(handler.NewGameHandler(g, fakeSync{}, nil))

	w, env := get(t, r, "/api/v1/display")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errno.ErrNotFound.Code, env.Code)
}
