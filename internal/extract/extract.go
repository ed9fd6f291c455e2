// Package extract converts document files to raw text.
//
// Extraction never returns an error to the caller: internal failures
// collapse to empty text, making "no content" an ordinary value the
// orchestrator skips. Failures are logged for triage.
package extract

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Extractor dispatches to a per-format text extraction routine based
// on the file extension.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the raw text of a document file, or empty text if
// the file cannot be read or parsed.
func (e *Extractor) Extract(path string) string {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDOCX(path)
	case ".pptx":
		text, err = extractPPTX(path)
	case ".md":
		text, err = extractMarkdown(path)
	default:
		text, err = extractPlain(path)
	}

	if err != nil {
		slog.Warn("text extraction failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return text
}

// extractPlain reads a file as UTF-8 text.
func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
