package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docfill/internal/domain"
	"docfill/internal/port"
)

// Client extracts template fragments from text chunks through a StructuredGenerator.
// It implements port.PlaceholderExtractor.
type Client struct {
	generator port.StructuredGenerator
	skip      bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSkip makes ExtractChunk return a nil fragment without calling the generator.
func WithSkip() ClientOption {
	return func(c *Client) { c.skip = true }
}

// NewClient creates an extraction client backed by generator.
func NewClient(generator port.StructuredGenerator, opts ...ClientOption) *Client {
	c := &Client{generator: generator}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fragmentNode struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	Key        string `json:"key"`
	Raw        string `json:"raw"`
	InstanceID string `json:"instance_id"`
}

type fragmentPlaceholder struct {
	Key             string `json:"key"`
	Raw             string `json:"raw"`
	Description     string `json:"description"`
	Type            string `json:"type"`
	Required        bool   `json:"required"`
	InstanceID      string `json:"instance_id"`
	ParagraphIndex  int    `json:"paragraph_index"`
	SurroundingText string `json:"surrounding_text"`
}

type fragment struct {
	ContentNodes []fragmentNode        `json:"content_nodes"`
	Placeholders []fragmentPlaceholder `json:"placeholders"`
}

// ExtractChunk asks the generator for the placeholders of one chunk. Errors are returned
// unretried so the caller can fail the batch.
func (c *Client) ExtractChunk(ctx context.Context, chunk string, chunkIndex int, usedKeys []string) (*domain.Template, error) {
	if c.skip {
		return nil, nil
	}

	schema := TemplateSchema()
	out, err := c.generator.Generate(ctx, port.GenerateInput{
		Prompt:     BuildExtractionPrompt(chunk, chunkIndex, usedKeys),
		Schema:     schema,
		SchemaName: "template_fragment",
	})
	if err != nil {
		return nil, fmt.Errorf("generating chunk %d: %w", chunkIndex, err)
	}

	raw, err := sanitizeFragment([]byte(StripCodeFence(string(out.Object))))
	if err != nil {
		return nil, fmt.Errorf("decoding chunk %d output: %w (raw: %s)", chunkIndex, err, Truncate(string(out.Object), 500))
	}
	if err := ValidateAgainstSchema(schema, raw); err != nil {
		return nil, fmt.Errorf("chunk %d: %w", chunkIndex, err)
	}

	var frag fragment
	if err := json.Unmarshal(raw, &frag); err != nil {
		return nil, fmt.Errorf("decoding chunk %d fragment: %w", chunkIndex, err)
	}

	tmpl := annotate(frag, chunkIndex)
	return &tmpl, nil
}

// annotate converts the wire fragment into a domain template stamped with its chunk position.
// Every placeholder node is guaranteed a matching placeholder entry.
func annotate(frag fragment, chunkIndex int) domain.Template {
	tmpl := domain.EmptyTemplate()
	known := make(map[string]bool, len(frag.Placeholders))

	for i, fp := range frag.Placeholders {
		raw := strings.TrimSpace(fp.Raw)
		key := NormalizeKey(fp.Key)
		if key == "" {
			key = NormalizeKey(raw)
		}
		if key == "" {
			key = fmt.Sprintf("field_%d_%d", chunkIndex+1, i+1)
		}
		known[key] = true
		tmpl.Placeholders = append(tmpl.Placeholders, domain.Placeholder{
			Key:         key,
			Raw:         raw,
			Description: truncateRunes(strings.TrimSpace(fp.Description), domain.MaxDescriptionLength),
			Type:        domain.ParsePlaceholderType(fp.Type),
			Required:    fp.Required,
			Value:       nil,
			InstanceID:  fp.InstanceID,
			Context: &domain.PlaceholderContext{
				Index:           i,
				ChunkIndex:      chunkIndex,
				ParagraphIndex:  fp.ParagraphIndex,
				SurroundingText: fp.SurroundingText,
				OriginalRaw:     fp.Raw,
			},
		})
	}

	for _, fn := range frag.ContentNodes {
		switch domain.NodeType(fn.Type) {
		case domain.NodeTypeText:
			tmpl.ContentNodes = append(tmpl.ContentNodes, domain.TextNode(fn.Content))
		case domain.NodeTypePlaceholder:
			raw := strings.TrimSpace(fn.Raw)
			key := NormalizeKey(fn.Key)
			if key == "" {
				key = NormalizeKey(raw)
			}
			if key == "" {
				continue
			}
			if !known[key] {
				known[key] = true
				tmpl.Placeholders = append(tmpl.Placeholders, domain.Placeholder{
					Key:      key,
					Raw:      raw,
					Type:     domain.PlaceholderTypeUnknown,
					Required: true,
					Context: &domain.PlaceholderContext{
						Index:       len(tmpl.Placeholders),
						ChunkIndex:  chunkIndex,
						OriginalRaw: fn.Raw,
					},
				})
			}
			node := domain.PlaceholderNode(key, raw)
			node.InstanceID = fn.InstanceID
			node.Context = &domain.PlaceholderContext{ChunkIndex: chunkIndex, OriginalRaw: fn.Raw}
			tmpl.ContentNodes = append(tmpl.ContentNodes, node)
		}
	}
	return tmpl
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey converts a model-supplied key or token into snake_case.
func NormalizeKey(s string) string {
	s = nonKeyChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	return strings.Trim(s, "_")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
