package template

import (
	"strings"

	"docfill/internal/domain"
)

// MatchTokens lists the strings that may stand for a placeholder in the source document,
// most specific first: the token as first seen, its trimmed form, the current raw, raw
// with whitespace collapsed, then [KEY]. A renamed placeholder tries its canonical raw
// first because normalization rewrites the stored original to it.
func MatchTokens(p domain.Placeholder) []string {
	original := p.OriginalRaw()
	trimmed := strings.TrimSpace(original)
	raw := strings.TrimSpace(p.Raw)

	var candidates []string
	if raw != "" && raw != trimmed {
		candidates = append(candidates, raw)
	}
	candidates = append(candidates,
		original,
		trimmed,
		raw,
		strings.Join(strings.Fields(raw), " "),
		"["+strings.ToUpper(p.Key)+"]",
	)

	seen := make(map[string]struct{}, len(candidates))
	tokens := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		tokens = append(tokens, c)
	}
	return tokens
}
