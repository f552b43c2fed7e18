package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// Replacement asks for one placeholder occurrence to be filled. Tokens are tried in
// order and the first that still occurs in the document is used.
type Replacement struct {
	Key    string
	Tokens []string
	Value  string
}

// Result reports which replacements found a token.
type Result struct {
	Data    []byte
	Applied []string
	Missed  []string
}

// TokenReplacer substitutes placeholder tokens in a .docx.
type TokenReplacer interface {
	Replace(data []byte, replacements []Replacement) (*Result, error)
}

// StructuralReplacer edits the paragraph/run text tree of the document, header and
// footer parts, so tokens split across formatting runs are still found.
type StructuralReplacer struct{}

type cursor struct {
	part, para, offset int
}

func (StructuralReplacer) Replace(data []byte, replacements []Replacement) (*Result, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, err
	}

	var parts []*textPart
	for _, name := range pkg.TextParts() {
		content, _ := pkg.Part(name)
		parts = append(parts, parseTextPart(name, content))
	}

	// Each token resumes after its previous hit so repeated tokens fill in document order.
	cursors := map[string]cursor{}
	res := &Result{}

	for _, r := range replacements {
		applied := false
		for _, token := range r.Tokens {
			if token == "" {
				continue
			}
			if at, ok := findFrom(parts, token, cursors[token]); ok {
				p := parts[at.part].paragraphs[at.para]
				p.replace(at.offset, at.offset+len(token), r.Value)
				shiftCursors(cursors, at, len(token), len(r.Value))
				cursors[token] = cursor{part: at.part, para: at.para, offset: at.offset + len(r.Value)}
				applied = true
				break
			}
		}
		if applied {
			res.Applied = append(res.Applied, r.Key)
		} else {
			res.Missed = append(res.Missed, r.Key)
		}
	}

	for _, tp := range parts {
		if tp.dirty() {
			pkg.SetPart(tp.name, tp.render())
		}
	}
	out, err := pkg.Bytes()
	if err != nil {
		return nil, err
	}
	res.Data = out
	return res, nil
}

// shiftCursors moves cursors that sit after an edit in the same paragraph so they keep
// pointing at the same text once the paragraph has grown or shrunk.
func shiftCursors(cursors map[string]cursor, at cursor, oldLen, newLen int) {
	end := at.offset + oldLen
	for token, c := range cursors {
		if c.part != at.part || c.para != at.para || c.offset <= at.offset {
			continue
		}
		if c.offset >= end {
			c.offset += newLen - oldLen
		} else {
			c.offset = at.offset + newLen
		}
		cursors[token] = c
	}
}

func findFrom(parts []*textPart, token string, from cursor) (cursor, bool) {
	for pi := from.part; pi < len(parts); pi++ {
		paras := parts[pi].paragraphs
		start := 0
		if pi == from.part {
			start = from.para
		}
		for qi := start; qi < len(paras); qi++ {
			text := paras[qi].text()
			offset := 0
			if pi == from.part && qi == from.para {
				offset = from.offset
			}
			if offset > len(text) {
				continue
			}
			if idx := strings.Index(text[offset:], token); idx >= 0 {
				return cursor{part: pi, para: qi, offset: offset + idx}, true
			}
		}
	}
	return cursor{}, false
}

// MarkupReplacer edits the raw XML text of each part. It tries the escaped token, the
// token as given, then a pattern tolerating whitespace and tags between characters.
// Only the first match per replacement is substituted.
type MarkupReplacer struct{}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func (MarkupReplacer) Replace(data []byte, replacements []Replacement) (*Result, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, err
	}
	names := pkg.TextParts()
	contents := make([]string, len(names))
	for i, name := range names {
		b, _ := pkg.Part(name)
		contents[i] = string(b)
	}

	res := &Result{}
	for _, r := range replacements {
		value := escape(r.Value)
		if replaceFirstMarkup(contents, r.Tokens, value) {
			res.Applied = append(res.Applied, r.Key)
		} else {
			res.Missed = append(res.Missed, r.Key)
		}
	}

	for i, name := range names {
		pkg.SetPart(name, []byte(contents[i]))
	}
	out, err := pkg.Bytes()
	if err != nil {
		return nil, err
	}
	res.Data = out
	return res, nil
}

func replaceFirstMarkup(contents []string, tokens []string, value string) bool {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		for _, literal := range []string{escape(token), token} {
			for i, c := range contents {
				if idx := strings.Index(c, literal); idx >= 0 {
					contents[i] = c[:idx] + value + c[idx+len(literal):]
					return true
				}
			}
		}
		re, err := tolerantPattern(token)
		if err != nil {
			continue
		}
		for i, c := range contents {
			loc := re.FindStringIndex(c)
			if loc == nil {
				continue
			}
			// Keep the tags crossed by the match so the markup stays balanced.
			tags := strings.Join(tagRe.FindAllString(c[loc[0]:loc[1]], -1), "")
			contents[i] = c[:loc[0]] + value + tags + c[loc[1]:]
			return true
		}
	}
	return false
}

// tolerantPattern matches token with any run of whitespace or tags between its characters.
func tolerantPattern(token string) (*regexp.Regexp, error) {
	var parts []string
	for _, r := range token {
		if r == ' ' || r == '\t' {
			parts = append(parts, `\s*`)
			continue
		}
		parts = append(parts, regexp.QuoteMeta(escape(string(r))))
	}
	return regexp.Compile(strings.Join(parts, `(?:\s|<[^>]+>)*`))
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ChainReplacer runs Primary and falls back to Fallback when Primary errors.
type ChainReplacer struct {
	Primary  TokenReplacer
	Fallback TokenReplacer
}

// NewChainReplacer returns the default structural-then-markup chain.
func NewChainReplacer() *ChainReplacer {
	return &ChainReplacer{Primary: StructuralReplacer{}, Fallback: MarkupReplacer{}}
}

func (c *ChainReplacer) Replace(data []byte, replacements []Replacement) (*Result, error) {
	if c.Primary != nil {
		res, err := c.Primary.Replace(data, replacements)
		if err == nil {
			return res, nil
		}
		if c.Fallback == nil {
			return nil, err
		}
		log.Printf("docx.ChainReplacer: structural replace failed, using markup fallback: %v", err)
	}
	if c.Fallback == nil {
		return nil, fmt.Errorf("no token replacer configured")
	}
	return c.Fallback.Replace(data, replacements)
}
