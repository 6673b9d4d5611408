package retrieval

import (
	"regexp"
	"strings"
)

// tokenRe matches alphabetic runs (apostrophes allowed, so "God's" stays one
// term) after lowercasing.
var tokenRe = regexp.MustCompile(`[a-z']+`)

// stopWords are excluded from token sets on both the ingest and query side.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
		"from", "had", "has", "have", "he", "her", "his", "i", "if", "in",
		"into", "is", "it", "its", "me", "my", "no", "not", "of", "on",
		"or", "our", "shall", "she", "so", "that", "the", "their", "them",
		"then", "there", "these", "they", "this", "thou", "thy", "to",
		"unto", "upon", "was", "we", "were", "what", "which", "who",
		"will", "with", "ye", "you", "your",
	} {
		stopWords[w] = struct{}{}
	}
}

// Tokenize lowercases text, extracts alphabetic terms, and drops stop words.
// The same function is applied at ingest and query time so term comparisons
// are exact.
func Tokenize(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.Trim(t, "'")
		if t == "" {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// TokenSet returns the unique tokens of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}
