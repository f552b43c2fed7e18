package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"docfill/internal/domain"
)

// columns defines the header row shared by the CSV and XLSX exports.
var columns = []string{
	"Key",
	"Token",
	"Description",
	"Type",
	"Required",
	"Value",
	"Chunk",
	"Context",
}

func placeholderToRow(p *domain.Placeholder) []string {
	row := make([]string, len(columns))
	row[0] = p.Key
	row[1] = p.Raw
	row[2] = p.Description
	row[3] = string(p.Type)
	row[4] = formatBool(p.Required)
	if p.Value != nil {
		row[5] = *p.Value
	}
	if p.Context != nil {
		row[6] = fmt.Sprintf("%d", p.Context.ChunkIndex+1)
		row[7] = p.Context.SurroundingText
	}
	return row
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces characters unsafe for a download filename.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}

// BuildFilename returns "<name>_placeholders_<date>.<ext>" for a document filename.
func BuildFilename(documentName, ext string) string {
	base := strings.TrimSuffix(documentName, ".docx")
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_placeholders_%s.%s", SanitizeFilename(base), date, ext)
}
