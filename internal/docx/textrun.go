package docx

import (
	"bytes"
	"encoding/xml"
	"html"
	"regexp"
	"sort"
	"strings"
)

var (
	textNodeRe   = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	paragraphEnd = regexp.MustCompile(`</w:p>`)
)

// textNode is one <w:t> element located by byte offsets in its part.
type textNode struct {
	start, end int
	text       string
	dirty      bool
}

// paragraph groups the text nodes of one <w:p>.
type paragraph struct {
	nodes []*textNode
}

func (p *paragraph) text() string {
	var b strings.Builder
	for _, n := range p.nodes {
		b.WriteString(n.text)
	}
	return b.String()
}

// replace substitutes [s,e) of the paragraph text with value. The value lands in the
// node holding s; the rest of the match is cut from the following nodes.
func (p *paragraph) replace(s, e int, value string) {
	offset := 0
	placed := false
	for _, n := range p.nodes {
		nStart, nEnd := offset, offset+len(n.text)
		offset = nEnd
		if nEnd <= s {
			continue
		}
		if nStart >= e && placed {
			break
		}
		localStart := clamp(s-nStart, 0, len(n.text))
		localEnd := clamp(e-nStart, 0, len(n.text))
		if !placed {
			n.text = n.text[:localStart] + value + n.text[localEnd:]
			placed = true
		} else {
			n.text = n.text[localEnd:]
		}
		n.dirty = true
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// textPart is the run-text tree of one XML part.
type textPart struct {
	name       string
	xml        []byte
	nodes      []*textNode
	paragraphs []*paragraph
}

func parseTextPart(name string, content []byte) *textPart {
	tp := &textPart{name: name, xml: content}

	var ends []int
	for _, loc := range paragraphEnd.FindAllIndex(content, -1) {
		ends = append(ends, loc[0])
	}

	byParagraph := map[int]*paragraph{}
	var order []int
	for _, loc := range textNodeRe.FindAllSubmatchIndex(content, -1) {
		n := &textNode{
			start: loc[0],
			end:   loc[1],
			text:  html.UnescapeString(string(content[loc[2]:loc[3]])),
		}
		tp.nodes = append(tp.nodes, n)

		idx := sort.SearchInts(ends, loc[0])
		p, ok := byParagraph[idx]
		if !ok {
			p = &paragraph{}
			byParagraph[idx] = p
			order = append(order, idx)
		}
		p.nodes = append(p.nodes, n)
	}
	for _, idx := range order {
		tp.paragraphs = append(tp.paragraphs, byParagraph[idx])
	}
	return tp
}

func (tp *textPart) dirty() bool {
	for _, n := range tp.nodes {
		if n.dirty {
			return true
		}
	}
	return false
}

// render writes the part back, rewriting only modified text nodes.
func (tp *textPart) render() []byte {
	var buf bytes.Buffer
	prev := 0
	for _, n := range tp.nodes {
		buf.Write(tp.xml[prev:n.start])
		if n.dirty {
			buf.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(&buf, []byte(n.text))
			buf.WriteString(`</w:t>`)
		} else {
			buf.Write(tp.xml[n.start:n.end])
		}
		prev = n.end
	}
	buf.Write(tp.xml[prev:])
	return buf.Bytes()
}
