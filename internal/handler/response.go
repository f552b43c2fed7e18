package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docfill/internal/domain"
	"docfill/internal/extraction"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var rateErr *extraction.RateLimitError
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrMissingFile):
		return http.StatusBadRequest, "MISSING_FILE", "file field is required"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: docx"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrInvalidDocument):
		return http.StatusBadRequest, "INVALID_DOCUMENT", "document could not be read as a Word file"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "file upload to storage failed"
	case errors.Is(err, domain.ErrDocumentNotReady):
		return http.StatusConflict, "DOCUMENT_NOT_READY", "document is still being processed"
	case errors.Is(err, domain.ErrDocumentNotFailed):
		return http.StatusConflict, "DOCUMENT_NOT_FAILED", "only failed documents can be retried"
	case errors.Is(err, domain.ErrInvalidUpdate):
		return http.StatusBadRequest, "INVALID_UPDATE", "at least one non-empty value is required"
	case errors.Is(err, domain.ErrUnknownPlaceholder):
		return http.StatusBadRequest, "UNKNOWN_PLACEHOLDER", err.Error()
	case errors.Is(err, domain.ErrNoFilledDocument):
		return http.StatusNotFound, "NO_FILLED_DOCUMENT", "no filled document has been generated yet"
	case errors.Is(err, domain.ErrInvalidVariant):
		return http.StatusBadRequest, "INVALID_VARIANT", "variant must be original or filled"
	case errors.Is(err, domain.ErrInvalidExportFormat):
		return http.StatusBadRequest, "INVALID_FORMAT", "format must be xlsx or csv"
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest, "EMPTY_MESSAGE", "message is required"
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, "RATE_LIMITED", "the language model is rate limited; retry later"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] internal error: %v", requestID, err)
	}
	var rateErr *extraction.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
	}
	RespondError(c, status, code, msg)
}

// parseDocumentID reads the :id path parameter. It writes the error response and
// returns false when the value is not a UUID.
func parseDocumentID(c *gin.Context) (uuid.UUID, bool) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return uuid.Nil, false
	}
	return docID, true
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
