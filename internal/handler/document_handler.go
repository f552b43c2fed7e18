package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docfill/internal/service"
)

// DocumentHandler handles template upload, processing and filling endpoints.
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload handles POST /api/v1/documents
// @Summary Upload a template
// @Description Upload a .docx template. Small templates are processed inline; larger ones are processed in batches.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Word template (.docx)"
// @Success 201 {object} Response{data=domain.Document} "Document created"
// @Failure 400 {object} ErrorResponseBody "Missing file or unsupported type"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Failure 500 {object} ErrorResponseBody "Upload failed"
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	doc, err := h.documentService.Upload(c.Request.Context(), service.UploadInput{
		File:     file,
		Filename: header.Filename,
		Size:     header.Size,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, doc)
}

// List handles GET /api/v1/documents
// @Summary List documents
// @Tags documents
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.Document,meta=PagMeta} "List of documents"
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	docs, total, err := h.documentService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/documents/:id
// @Summary Get document by ID
// @Description Get a document with its template and processing progress
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=domain.Document} "Document details"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Process handles POST /api/v1/documents/:id/process
// @Summary Process the next batch of chunks
// @Description Runs one extraction batch from the stored cursor. Safe to call repeatedly.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=BatchResponse} "Batch outcome"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Router /documents/{id}/process [post]
func (h *DocumentHandler) Process(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	res, err := h.documentService.ProcessNextBatch(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	out := BatchResponse{Status: string(res.Status), Document: res.Document}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	RespondOK(c, out)
}

// Retry handles POST /api/v1/documents/:id/retry
// @Summary Retry a failed document
// @Description Resets a failed document to processing. Extraction resumes from the chunk that failed.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Success 200 {object} Response{data=domain.Document} "Document reset"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document has not failed"
// @Router /documents/{id}/retry [post]
func (h *DocumentHandler) Retry(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.RetryProcessing(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// UpdatePlaceholders handles PATCH /api/v1/documents/:id/placeholders
// @Summary Set placeholder values
// @Description Stores values for known placeholders and regenerates the filled document
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param request body UpdatePlaceholdersRequest true "Values keyed by placeholder key"
// @Success 200 {object} Response{data=domain.Document} "Updated document"
// @Failure 400 {object} ErrorResponseBody "Empty update or unknown key"
// @Failure 404 {object} ErrorResponseBody "Document not found"
// @Failure 409 {object} ErrorResponseBody "Document not ready"
// @Router /documents/{id}/placeholders [patch]
func (h *DocumentHandler) UpdatePlaceholders(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var req UpdatePlaceholdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "values object is required")
		return
	}

	doc, err := h.documentService.UpdatePlaceholders(c.Request.Context(), docID, req.Values)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Download handles GET /api/v1/documents/:id/download
// @Summary Get a download URL
// @Tags documents
// @Produce json
// @Param id path string true "Document ID (UUID)"
// @Param variant query string false "original or filled" default(original)
// @Success 200 {object} Response{data=DownloadURLResponse} "Presigned URL"
// @Failure 400 {object} ErrorResponseBody "Invalid variant"
// @Failure 404 {object} ErrorResponseBody "Document or filled document not found"
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	variant := c.DefaultQuery("variant", service.VariantOriginal)
	url, err := h.documentService.GetDownloadURL(c.Request.Context(), docID, variant)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, DownloadURLResponse{Variant: variant, DownloadURL: url})
}

// ExportPlaceholders handles GET /api/v1/documents/:id/placeholders/export
// @Summary Export placeholders
// @Description Download the placeholder table as an Excel workbook or CSV
// @Tags documents
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param id path string true "Document ID (UUID)"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} binary "Placeholder export"
// @Failure 400 {object} ErrorResponseBody "Invalid format"
// @Failure 409 {object} ErrorResponseBody "Document not ready"
// @Router /documents/{id}/placeholders/export [get]
func (h *DocumentHandler) ExportPlaceholders(c *gin.Context) {
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	file, err := h.documentService.ExportPlaceholders(c.Request.Context(), docID, c.DefaultQuery("format", service.ExportFormatXLSX))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
