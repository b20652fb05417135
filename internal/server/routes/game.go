package routes

import (
	"github.com/gin-gonic/gin"

	"si-monitor/internal/handler"
)

// RegisterGameRoutes 只读的游戏状态查询
func RegisterGameRoutes(rg *gin.RouterGroup, h *handler.GameHandler) {
	rg.GET("/sync", h.Sync)
	rg.GET("/gas", h.Gas)
	rg.GET("/display", h.Display)

	rounds := rg.Group("/rounds")
	{
		rounds.GET("", h.Rounds)
		rounds.GET("/:id", h.Round)
	}

	players := rg.Group("/players")
	{
		players.GET("", h.Players)
		players.GET("/:overlay", h.Player)
	}
}
