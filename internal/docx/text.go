package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ExtractText returns the visible body text of a .docx, one paragraph per block
// separated by blank lines. Empty paragraphs are dropped.
func ExtractText(data []byte) (string, error) {
	pkg, err := Open(data)
	if err != nil {
		return "", err
	}
	body, _ := pkg.Part(documentPart)

	paragraphs, err := parseParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", documentPart, err)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func parseParagraphs(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				depth--
				if depth == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						paragraphs = append(paragraphs, strings.TrimRight(current.String(), " \t\n"))
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
