package extraction

import (
	"fmt"
	"sort"
	"strings"

	"docfill/internal/domain"
)

// BuildExtractionPrompt returns the placeholder-extraction prompt for one chunk.
// usedKeys is advisory: it biases the model away from reusing keys already seen in earlier chunks.
func BuildExtractionPrompt(chunk string, chunkIndex int, usedKeys []string) string {
	var b strings.Builder
	b.WriteString(`You are a document template analyst. The text below is one section of a Word document template.
Identify every placeholder: a spot where the author expects a value to be filled in, such as [Company Name],
{{date}}, <<Buyer>>, $[_____], blank underscores, or bracketed instructions.

Return a JSON object with two keys:
- "content_nodes": the section in reading order as a list of nodes. A text node is {"type":"text","content":"..."};
  a placeholder node is {"type":"placeholder","key":"...","raw":"..."}. Concatenating the nodes must reproduce the section.
- "placeholders": one entry per placeholder occurrence, in order of appearance, with fields
  "key" (snake_case identifier), "raw" (the token exactly as written), "description" (at most 30 characters),
  "type" (one of `)
	types := make([]string, 0, len(domain.PlaceholderTypes))
	for _, t := range domain.PlaceholderTypes {
		types = append(types, string(t))
	}
	b.WriteString(strings.Join(types, ", "))
	b.WriteString(`), "required" (boolean), "value" (always null),
  "paragraph_index" (0-based paragraph within this section) and "surrounding_text" (a short snippet around the token).

Use the same key for a placeholder that clearly refers to the same value as another one in this section.
Return ONLY valid JSON with no markdown formatting, no code fences and no explanation.
`)
	if len(usedKeys) > 0 {
		keys := append([]string(nil), usedKeys...)
		sort.Strings(keys)
		b.WriteString("\nKeys already used in earlier sections (prefer new keys unless it is the same field): ")
		b.WriteString(strings.Join(keys, ", "))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nSection %d:\n<<<\n%s\n>>>\n", chunkIndex+1, chunk)
	return b.String()
}

// FillField describes one unfilled placeholder for the conversational fill prompt.
type FillField struct {
	Key         string
	Raw         string
	Description string
	Type        domain.PlaceholderType
	Required    bool
}

// BuildFillPrompt returns the prompt that maps a user message onto placeholder values.
func BuildFillPrompt(fields []FillField, message string) string {
	var b strings.Builder
	b.WriteString(`You help a user fill in a document template. Below are the fields that still need values.
Read the user's message and extract values for any fields it answers. Only use keys from the list.
Format dates as written by the user, numbers without thousands separators, and keep currency symbols for MONEY.

Return a JSON object {"updates":[{"key":"...","value":"..."}],"reply":"..."} where "reply" is a short,
friendly message that confirms what was recorded and asks for the next missing required field.
Return ONLY valid JSON with no markdown formatting.

Fields:
`)
	for _, f := range fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %s %s\n", f.Key, f.Type, req, f.Raw, f.Description)
	}
	fmt.Fprintf(&b, "\nUser message:\n%s\n", message)
	return b.String()
}
