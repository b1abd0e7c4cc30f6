package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ragline/ragline/internal/pkg/errcode"
	"github.com/ragline/ragline/internal/pkg/response"
	"github.com/ragline/ragline/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Question string `json:"question"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.chat.Chat(c.Request.Context(), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *ChatHandler) ClearMemory(c *gin.Context) {
	h.chat.ClearMemory()
	response.Success(c, gin.H{})
}
