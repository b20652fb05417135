package handler

import (
	"github.com/gin-gonic/gin"

	"si-monitor/internal/handler/response"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"version": Version,
		"service": "si-monitor",
	})
}
