package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrMissingFile         = errors.New("file is required")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrInvalidDocument     = errors.New("document could not be read")
	ErrDocumentNotReady    = errors.New("document is still being processed")
	ErrDocumentNotFailed   = errors.New("document has not failed processing")
	ErrInvalidUpdate       = errors.New("update contains no values")
	ErrUnknownPlaceholder  = errors.New("unknown placeholder key")
	ErrNoFilledDocument    = errors.New("no filled document has been generated")
	ErrInvalidVariant      = errors.New("variant must be original or filled")
	ErrEmptyMessage        = errors.New("message is required")
	ErrInvalidExportFormat = errors.New("format must be xlsx or csv")
)
