package handler

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"si-monitor/internal/display"
	"si-monitor/internal/game"
	"si-monitor/internal/handler/request"
	"si-monitor/internal/handler/response"
	"si-monitor/internal/service/observer"
	"si-monitor/pkg/errno"
)

const defaultRoundsLimit = 20

// GameQuery 引擎的只读接口
type GameQuery interface {
	Snapshot() game.Snapshot
	Rounds(limit int) []game.RoundView
	Round(id uint64) (game.RoundView, error)
	Players() []game.PlayerView
	Player(overlay common.Hash) (game.PlayerView, error)
}

// SyncQuery 同步器的只读接口
type SyncQuery interface {
	Stats() observer.Stats
	Gas() observer.GasStats
}

// DisplayQuery 最近的显示内容
type DisplayQuery interface {
	Snapshot() display.Snapshot
}

type GameHandler struct {
	game    GameQuery
	sync    SyncQuery
	display DisplayQuery
}

// NewGameHandler display 可以为空
func NewGameHandler(g GameQuery, sync SyncQuery, d DisplayQuery) *GameHandler {
	return &GameHandler{game: g, sync: sync, display: d}
}

// Sync GET /api/v1/sync
func (h *GameHandler) Sync(c *gin.Context) {
	response.Success(c, gin.H{
		"sync": h.sync.Stats(),
		"game": h.game.Snapshot(),
	})
}

// Rounds GET /api/v1/rounds?limit=20，最新的在前
func (h *GameHandler) Rounds(c *gin.Context) {
	var q request.RoundsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, fmt.Errorf("%w: %v", errno.ErrBadRequest, err))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultRoundsLimit
	}
	response.Success(c, h.game.Rounds(q.Limit))
}

// Round GET /api/v1/rounds/:id
func (h *GameHandler) Round(c *gin.Context) {
	var uri request.RoundURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, fmt.Errorf("%w: %v", errno.ErrBadRequest, err))
		return
	}
	id, err := strconv.ParseUint(uri.ID, 10, 64)
	if err != nil {
		response.Error(c, fmt.Errorf("%w: round id %q", errno.ErrBadRequest, uri.ID))
		return
	}

	round, err := h.game.Round(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, round)
}

// Players GET /api/v1/players
func (h *GameHandler) Players(c *gin.Context) {
	response.Success(c, h.game.Players())
}

// Player GET /api/v1/players/:overlay
func (h *GameHandler) Player(c *gin.Context) {
	var uri request.PlayerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, fmt.Errorf("%w: %v", errno.ErrBadRequest, err))
		return
	}
	overlay, err := game.ParseOverlay(uri.Overlay)
	if err != nil {
		response.Error(c, fmt.Errorf("%w: %v", errno.ErrBadRequest, err))
		return
	}

	p, err := h.game.Player(overlay)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Gas GET /api/v1/gas
func (h *GameHandler) Gas(c *gin.Context) {
	response.Success(c, h.sync.Gas())
}

// Display GET /api/v1/display
func (h *GameHandler) Display(c *gin.Context) {
	if h.display == nil {
		response.Error(c, fmt.Errorf("%w: display recorder disabled", errno.ErrNotFound))
		return
	}
	response.Success(c, h.display.Snapshot())
}
