package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderContext records where a placeholder was discovered.
type PlaceholderContext struct {
	Index           int    `json:"index"`
	ChunkIndex      int    `json:"chunk_index"`
	ParagraphIndex  int    `json:"paragraph_index"`
	SurroundingText string `json:"surrounding_text,omitempty"`
	// OriginalRaw is the token exactly as it appeared in the source, before any normalization or renaming.
	OriginalRaw string `json:"original_raw,omitempty"`
}

// ContentNode is one element of a template's linear structure: literal text or a placeholder reference.
type ContentNode struct {
	Type       NodeType            `json:"type"`
	Content    string              `json:"content,omitempty"`
	Key        string              `json:"key,omitempty"`
	Raw        string              `json:"raw,omitempty"`
	InstanceID string              `json:"instance_id,omitempty"`
	Context    *PlaceholderContext `json:"context,omitempty"`
}

// TextNode builds a literal text node.
func TextNode(content string) ContentNode {
	return ContentNode{Type: NodeTypeText, Content: content}
}

// PlaceholderNode builds a placeholder reference node.
func PlaceholderNode(key, raw string) ContentNode {
	return ContentNode{Type: NodeTypePlaceholder, Key: key, Raw: raw}
}

// Placeholder is a named field in a template awaiting a value.
type Placeholder struct {
	Key         string              `json:"key"`
	Raw         string              `json:"raw"`
	Description string              `json:"description"`
	Type        PlaceholderType     `json:"type"`
	Required    bool                `json:"required"`
	Value       *string             `json:"value"`
	InstanceID  string              `json:"instance_id,omitempty"`
	Context     *PlaceholderContext `json:"context,omitempty"`
}

// HasValue reports whether the placeholder carries a non-blank value.
func (p *Placeholder) HasValue() bool {
	return p.Value != nil && !isBlank(*p.Value)
}

// OriginalRaw returns the source token as first seen, falling back to Raw.
func (p *Placeholder) OriginalRaw() string {
	if p.Context != nil && p.Context.OriginalRaw != "" {
		return p.Context.OriginalRaw
	}
	return p.Raw
}

// Template is the ordered content of a document plus its placeholder set.
// Placeholders keep discovery order; keys are unique once deduplicated.
type Template struct {
	ContentNodes []ContentNode `json:"content_nodes"`
	Placeholders []Placeholder `json:"placeholders"`
}

// EmptyTemplate returns a template with non-nil slices so it serializes as empty arrays.
func EmptyTemplate() Template {
	return Template{ContentNodes: []ContentNode{}, Placeholders: []Placeholder{}}
}

// Clone returns a deep copy of the template.
func (t Template) Clone() Template {
	var out Template
	if t.ContentNodes != nil {
		out.ContentNodes = make([]ContentNode, len(t.ContentNodes))
	}
	if t.Placeholders != nil {
		out.Placeholders = make([]Placeholder, len(t.Placeholders))
	}
	for i, n := range t.ContentNodes {
		if n.Context != nil {
			c := *n.Context
			n.Context = &c
		}
		out.ContentNodes[i] = n
	}
	for i, p := range t.Placeholders {
		if p.Context != nil {
			c := *p.Context
			p.Context = &c
		}
		if p.Value != nil {
			v := *p.Value
			p.Value = &v
		}
		out.Placeholders[i] = p
	}
	return out
}

// Keys returns placeholder keys in discovery order.
func (t Template) Keys() []string {
	keys := make([]string, 0, len(t.Placeholders))
	for i := range t.Placeholders {
		keys = append(keys, t.Placeholders[i].Key)
	}
	return keys
}

// Append concatenates a fragment's nodes and placeholders onto the template.
func (t Template) Append(fragment Template) Template {
	out := t.Clone()
	frag := fragment.Clone()
	out.ContentNodes = append(out.ContentNodes, frag.ContentNodes...)
	out.Placeholders = append(out.Placeholders, frag.Placeholders...)
	return out
}

// Value implements driver.Valuer so a Template can be stored in a JSONB column.
func (t Template) Value() (driver.Value, error) {
	if t.ContentNodes == nil {
		t.ContentNodes = []ContentNode{}
	}
	if t.Placeholders == nil {
		t.Placeholders = []Placeholder{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshaling template: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for JSONB columns.
func (t *Template) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*t = EmptyTemplate()
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("template: unsupported scan source")
	}
	var out Template
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("unmarshaling template: %w", err)
	}
	if out.ContentNodes == nil {
		out.ContentNodes = []ContentNode{}
	}
	if out.Placeholders == nil {
		out.Placeholders = []Placeholder{}
	}
	*t = out
	return nil
}

// Document is an uploaded template together with its processing lifecycle.
type Document struct {
	ID                    uuid.UUID        `db:"id" json:"id"`
	Filename              string           `db:"filename" json:"filename"`
	MimeType              string           `db:"mime_type" json:"mime_type"`
	OriginalKey           string           `db:"original_key" json:"original_key"`
	FilledKey             *string          `db:"filled_key" json:"filled_key"`
	Template              Template         `db:"template" json:"template"`
	PlainText             *string          `db:"plain_text" json:"-"`
	ProcessingStatus      ProcessingStatus `db:"processing_status" json:"processing_status"`
	ProcessingProgress    int              `db:"processing_progress" json:"processing_progress"`
	ProcessingTotalChunks int              `db:"processing_total_chunks" json:"processing_total_chunks"`
	ProcessingNextChunk   int              `db:"processing_next_chunk" json:"processing_next_chunk"`
	ProcessingError       *string          `db:"processing_error" json:"processing_error"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// ProcessingUpdate is a partial update of a document's lifecycle fields.
// Nil pointers leave the column untouched.
type ProcessingUpdate struct {
	Status         *ProcessingStatus
	Progress       *int
	TotalChunks    *int
	NextChunk      *int
	Error          *string
	ClearError     bool
	ClearPlainText bool
	OriginalKey    *string
	FilledKey      *string
}

// IsEmpty reports whether the update touches no columns.
func (u ProcessingUpdate) IsEmpty() bool {
	return u.Status == nil && u.Progress == nil && u.TotalChunks == nil && u.NextChunk == nil &&
		u.Error == nil && !u.ClearError && !u.ClearPlainText && u.OriginalKey == nil && u.FilledKey == nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
