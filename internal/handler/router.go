package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Chat      *ChatHandler
	Documents *DocumentHandler
	Stats     *StatsHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/chat", deps.Chat.Chat)
	api.DELETE("/chat/memory", deps.Chat.ClearMemory)
	api.POST("/documents", deps.Documents.Ingest)
	api.GET("/stats", deps.Stats.Stats)
	api.DELETE("/cache", deps.Stats.ClearCache)
}
