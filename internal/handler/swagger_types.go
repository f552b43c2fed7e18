package handler

import "docfill/internal/domain"

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// UpdatePlaceholdersRequest represents the placeholder update request body.
type UpdatePlaceholdersRequest struct {
	Values map[string]string `json:"values" binding:"required" example:"company_name:Acme Ltd,effective_date:1 March 2025"`
}

// ChatRequest represents the conversational fill request body.
type ChatRequest struct {
	Message string `json:"message" binding:"required" example:"The buyer is Acme Ltd and the sale closes on 1 March 2025"`
}

// --- Response Types ---

// Response is the success envelope used in swagger annotations.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody is the error envelope used in swagger annotations.
type ErrorResponseBody struct {
	Success bool     `json:"success" example:"false"`
	Error   APIError `json:"error"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// BatchResponse reports the outcome of one processing batch.
type BatchResponse struct {
	Status   string           `json:"status" example:"processing"`
	Document *domain.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty" example:"extracting chunk 3: gemini rate limited"`
}

// DownloadURLResponse carries a presigned download URL.
type DownloadURLResponse struct {
	Variant     string `json:"variant" example:"filled"`
	DownloadURL string `json:"download_url" example:"https://s3.amazonaws.com/docfill/documents/...?X-Amz-Signature=..."`
}
