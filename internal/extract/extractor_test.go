package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// docxBytes builds a minimal .docx archive holding one paragraph.
func docxBytes(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(w, `<w:document><w:body><w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p></w:body></w:document>`, text)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("grace abounds"), 0600); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor()
	text, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "grace abounds" {
		t.Errorf("text = %q", text)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("missing file should error")
	}
}

func TestExtractBytes_InvalidUTF8(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte("good \xff bad"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if !strings.Contains(text, "good") || !strings.Contains(text, "bad") {
		t.Errorf("text = %q", text)
	}
	if strings.Contains(text, "\xff") {
		t.Error("invalid bytes should be replaced")
	}
}

func TestExtractBytes_HTML(t *testing.T) {
	html := `<html><head><title>skip</title><style>p{color:red}</style></head>
<body><script>var x = "skip";</script><p>First paragraph.</p><p>Second paragraph.</p></body></html>`
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte(html), ".html")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if !strings.Contains(text, "First paragraph.") || !strings.Contains(text, "Second paragraph.") {
		t.Errorf("body text missing: %q", text)
	}
	for _, forbidden := range []string{"skip", "color:red", "var x"} {
		if strings.Contains(text, forbidden) {
			t.Errorf("text should not contain %q: %q", forbidden, text)
		}
	}
}

func TestExtractBytes_DOCX(t *testing.T) {
	content := docxBytes(t, "In the beginning was the Word.")
	e := NewExtractor()
	text, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if !strings.Contains(text, "In the beginning was the Word.") {
		t.Errorf("text = %q", text)
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".txt", ".md", ".pdf", ".docx", ".odt", ".rtf", ".html", ".htm", ".xlsx"} {
		if !Supported(ext) {
			t.Errorf("%s should be supported", ext)
		}
	}
	for _, ext := range []string{".exe", ".png", ".mp3", ""} {
		if Supported(ext) {
			t.Errorf("%s should not be supported", ext)
		}
	}
}
