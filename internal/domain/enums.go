package domain

import "strings"

// MimeTypeDocx is the only accepted upload content type.
const MimeTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// AllowedExtensions maps file extensions (without dot) to their MIME content type.
var AllowedExtensions = map[string]string{
	"docx": MimeTypeDocx,
}

// ProcessingStatus represents the extraction lifecycle of a document.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusReady      ProcessingStatus = "ready"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// IsTerminal reports whether no further batch step changes the status.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusReady || s == ProcessingStatusFailed
}

// NodeType discriminates content nodes.
type NodeType string

const (
	NodeTypeText        NodeType = "text"
	NodeTypePlaceholder NodeType = "placeholder"
)

// PlaceholderType is the expected kind of value for a placeholder.
type PlaceholderType string

const (
	PlaceholderTypeString  PlaceholderType = "STRING"
	PlaceholderTypeNumber  PlaceholderType = "NUMBER"
	PlaceholderTypeDate    PlaceholderType = "DATE"
	PlaceholderTypePercent PlaceholderType = "PERCENT"
	PlaceholderTypeMoney   PlaceholderType = "MONEY"
	PlaceholderTypeUnknown PlaceholderType = "UNKNOWN"
)

// PlaceholderTypes lists every valid placeholder type.
var PlaceholderTypes = []PlaceholderType{
	PlaceholderTypeString,
	PlaceholderTypeNumber,
	PlaceholderTypeDate,
	PlaceholderTypePercent,
	PlaceholderTypeMoney,
	PlaceholderTypeUnknown,
}

// ParsePlaceholderType maps free-form model output to a PlaceholderType, defaulting to UNKNOWN.
func ParsePlaceholderType(s string) PlaceholderType {
	candidate := PlaceholderType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range PlaceholderTypes {
		if t == candidate {
			return t
		}
	}
	return PlaceholderTypeUnknown
}

// MaxDescriptionLength bounds placeholder descriptions.
const MaxDescriptionLength = 30
