package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ragline/ragline/internal/model"
	"github.com/ragline/ragline/internal/pkg/errcode"
	"github.com/ragline/ragline/internal/pkg/response"
	"github.com/ragline/ragline/internal/service"
)

const maxChunksPerRequest = 1000

type DocumentHandler struct {
	ingest *service.IngestService
}

func NewDocumentHandler(ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

type ingestRequest struct {
	Chunks []model.Chunk `json:"chunks"`
}

func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len(req.Chunks) == 0 {
		response.Error(c, errcode.ErrInvalid, "chunks required")
		return
	}
	if len(req.Chunks) > maxChunksPerRequest {
		response.Error(c, errcode.ErrInvalid, "too many chunks in one request")
		return
	}
	result, err := h.ingest.IngestChunks(c.Request.Context(), req.Chunks)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
