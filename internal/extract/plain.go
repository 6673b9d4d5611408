package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain passes text files through unchanged, coercing any invalid
// UTF-8 sequences to the replacement rune so downstream chunking and
// tokenizing always see well-formed text.
func extractPlain(content []byte) (string, error) {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return s, nil
}
