package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lu4p/cat"
)

// extractODT extracts text from .odt and .rtf content via lu4p/cat, whose
// API is path-based; bytes are staged through a temp file.
func extractODT(content []byte, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "lectio-*"+ext)
	if err != nil {
		return "", fmt.Errorf("extract %s: temp file: %w", ext, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("extract %s: write temp: %w", ext, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("extract %s: close temp: %w", ext, err)
	}
	return extractODTFile(tmp.Name())
}

// extractODTFile extracts text from an .odt or .rtf file on disk.
func extractODTFile(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Ext(path), err)
	}
	return text, nil
}
