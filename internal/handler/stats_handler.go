package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ragline/ragline/internal/pkg/response"
	"github.com/ragline/ragline/internal/service"
)

type StatsHandler struct {
	chat *service.ChatService
}

func NewStatsHandler(chat *service.ChatService) *StatsHandler {
	return &StatsHandler{chat: chat}
}

func (h *StatsHandler) Stats(c *gin.Context) {
	response.Success(c, h.chat.Stats(c.Request.Context()))
}

func (h *StatsHandler) ClearCache(c *gin.Context) {
	if err := h.chat.ClearCache(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}
