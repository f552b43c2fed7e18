package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docfill/internal/service"
)

// FillHandler handles conversational filling of placeholders.
type FillHandler struct {
	fillService service.FillService
}

// NewFillHandler creates a new FillHandler.
func NewFillHandler(fillService service.FillService) *FillHandler {
	return &FillHandler{fillService: fillService}
}

// Chat handles POST /api/v1/documents/:id/chat
// @Summary Fill placeholders from a message
// @Description Extracts values for unfilled placeholders from a free-form message and applies them
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param request body ChatRequest true "User message"
// @Success 200 {object} Response{data=service.ChatResult} "Reply and applied values"
// @Failure 400 {object} ErrorResponseBody "Empty message"
// @Failure 409 {object} ErrorResponseBody "Document not ready"
// @Failure 429 {object} ErrorResponseBody "Language model rate limited"
// @Router /documents/{id}/chat [post]
func (h *FillHandler) Chat(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "message is required")
		return
	}

	res, err := h.fillService.Converse(c.Request.Context(), docID, req.Message)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, res)
}
