package docx

import "strings"

// Rename maps the token first seen in the source to its canonical form.
type Rename struct {
	Key  string
	From string
	To   string
}

// Normalize rewrites source tokens to their canonical raw form, one occurrence per
// rename in discovery order. Identity renames still consume their occurrence so later
// duplicates line up. It reports whether any bytes changed.
func Normalize(data []byte, renames []Rename) ([]byte, bool, error) {
	replacements := make([]Replacement, 0, len(renames))
	changed := false
	for _, r := range renames {
		from := strings.TrimSpace(r.From)
		to := strings.TrimSpace(r.To)
		if from == "" {
			continue
		}
		if to == "" {
			to = from
		}
		if to != from {
			changed = true
		}
		replacements = append(replacements, Replacement{Key: r.Key, Tokens: []string{from}, Value: to})
	}
	if !changed {
		return data, false, nil
	}

	res, err := NewChainReplacer().Replace(data, replacements)
	if err != nil {
		return nil, false, err
	}
	return res.Data, true, nil
}
