package template

import (
	"sort"
	"strings"

	"docfill/internal/domain"
)

// ApplyUpdates sets placeholder values from updates. Unknown keys and blank values are
// ignored, so existing values are never erased. Applying the same map twice is a no-op.
func ApplyUpdates(t domain.Template, updates map[string]string) domain.Template {
	out := t.Clone()
	for i := range out.Placeholders {
		p := &out.Placeholders[i]
		v, ok := updates[p.Key]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		p.Value = &v
	}
	return out
}

// IsComplete reports whether every required placeholder has a non-blank value.
func IsComplete(t domain.Template) bool {
	for i := range t.Placeholders {
		if t.Placeholders[i].Required && !t.Placeholders[i].HasValue() {
			return false
		}
	}
	return true
}

// Missing returns placeholders still lacking a value, required ones first.
func Missing(t domain.Template) []domain.Placeholder {
	var required, optional []domain.Placeholder
	for _, p := range t.Placeholders {
		if p.HasValue() {
			continue
		}
		if p.Required {
			required = append(required, p)
		} else {
			optional = append(optional, p)
		}
	}
	return append(required, optional...)
}

// UnknownKeys returns the sorted keys of updates that match no placeholder.
func UnknownKeys(t domain.Template, updates map[string]string) []string {
	known := make(map[string]struct{}, len(t.Placeholders))
	for i := range t.Placeholders {
		known[t.Placeholders[i].Key] = struct{}{}
	}
	var unknown []string
	for k := range updates {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// HasAnyValue reports whether updates carries at least one non-blank value.
func HasAnyValue(updates map[string]string) bool {
	for _, v := range updates {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
