// Package chunker splits document text into bounded chunks at paragraph boundaries.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkLength is used when a non-positive limit is supplied.
const DefaultMaxChunkLength = 6000

const paragraphSeparator = "\n\n"

var blankLineRe = regexp.MustCompile(`\r?\n[ \t\r\f\v]*\r?\n`)

// Split packs blank-line separated paragraphs greedily into chunks of at most maxLen
// runes. A paragraph longer than maxLen is hard-split at the limit. Whitespace-only
// input yields no chunks. The result depends only on the inputs.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
	}
	add := func(p string, n int) {
		if curLen > 0 {
			current.WriteString(paragraphSeparator)
			curLen += len(paragraphSeparator)
		}
		current.WriteString(p)
		curLen += n
	}

	for _, p := range Paragraphs(text) {
		n := utf8.RuneCountInString(p)
		if n > maxLen {
			flush()
			pieces := hardSplit(p, maxLen)
			for _, piece := range pieces[:len(pieces)-1] {
				chunks = append(chunks, piece)
			}
			last := pieces[len(pieces)-1]
			add(last, utf8.RuneCountInString(last))
			continue
		}
		if curLen > 0 && curLen+len(paragraphSeparator)+n > maxLen {
			flush()
		}
		add(p, n)
	}
	flush()
	return chunks
}

// Paragraphs returns the non-blank paragraphs of text in order.
func Paragraphs(text string) []string {
	raw := blankLineRe.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Trim(p, "\r\n")
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func hardSplit(p string, maxLen int) []string {
	runes := []rune(p)
	pieces := make([]string, 0, len(runes)/maxLen+1)
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}
