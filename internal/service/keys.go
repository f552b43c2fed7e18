package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var now = time.Now

func originalObjectKey(docID uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/original/%s", docID, filename)
}

func normalizedObjectKey(docID uuid.UUID) string {
	return fmt.Sprintf("documents/%s/original/normalized-%d.docx", docID, now().UTC().UnixNano())
}

func filledObjectKey(docID uuid.UUID) string {
	return fmt.Sprintf("documents/%s/filled/%d.docx", docID, now().UTC().UnixNano())
}

// filledDownloadName turns "nda.docx" into "nda_filled.docx".
func filledDownloadName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if base == "" {
		base = "document"
	}
	return base + "_filled.docx"
}
