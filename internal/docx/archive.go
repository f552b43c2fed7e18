package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

const documentPart = "word/document.xml"

// ErrNotDocx is returned when the bytes are not a readable Word package.
var ErrNotDocx = errors.New("not a valid docx package")

type entry struct {
	header zip.FileHeader
	data   []byte
}

// Package is an in-memory Word (OOXML) zip package.
type Package struct {
	entries []*entry
	index   map[string]*entry
}

// Open reads every entry of a .docx archive into memory.
func Open(data []byte) (*Package, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}

	pkg := &Package{index: make(map[string]*entry, len(reader.File))}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrNotDocx, file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrNotDocx, file.Name, err)
		}
		e := &entry{header: file.FileHeader, data: content}
		pkg.entries = append(pkg.entries, e)
		pkg.index[file.Name] = e
	}

	if _, ok := pkg.index[documentPart]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotDocx, documentPart)
	}
	return pkg, nil
}

// Part returns the content of a named entry.
func (p *Package) Part(name string) ([]byte, bool) {
	e, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// SetPart replaces the content of an existing entry.
func (p *Package) SetPart(name string, data []byte) {
	if e, ok := p.index[name]; ok {
		e.data = data
	}
}

// TextParts lists the parts that carry visible text: the main document first,
// then headers and footers in name order.
func (p *Package) TextParts() []string {
	parts := []string{documentPart}
	var extra []string
	for _, e := range p.entries {
		dir, base := path.Split(e.header.Name)
		if dir != "word/" || path.Ext(base) != ".xml" {
			continue
		}
		if strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer") {
			extra = append(extra, e.header.Name)
		}
	}
	sort.Strings(extra)
	return append(parts, extra...)
}

// Bytes serializes the package back into a zip archive, keeping entry order.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range p.entries {
		fh := e.header
		fh.CompressedSize64 = 0
		fh.UncompressedSize64 = 0
		fh.CRC32 = 0
		fw, err := w.CreateHeader(&fh)
		if err != nil {
			return nil, fmt.Errorf("writing %s header: %w", fh.Name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", fh.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}
