// Package extract provides text extraction from the corpus document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor extracts plain text from document files. The retrieval index
// never depends on which formats are supported; anything that reaches it is
// already plain text.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// Plain text (.txt, .md) is returned as-is after UTF-8 validation; PDF,
// DOCX, ODT, RTF, HTML, and XLSX are converted from their binary formats.
// Returns an error if the file cannot be read or decoded.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	// lu4p/cat reads from disk; skip the byte round-trip for these.
	if ext == ".odt" || ext == ".rtf" {
		return extractODTFile(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		return extractODT(content, ext)
	case ".html", ".htm":
		return extractHTML(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", "":
		return extractPlain(content)
	default:
		// Unknown extension: treat as plain text
		return extractPlain(content)
	}
}

// Supported reports whether ext (with leading dot) has a dedicated extractor.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".html", ".htm", ".xlsx", ".txt", ".md":
		return true
	}
	return false
}
