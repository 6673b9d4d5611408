package commentary

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/psalterlabs/lectio/internal/models"
)

// Conflict detection is a deterministic lexical heuristic, advisory only.
// For each pair of personas with commentary on a passage, the latest texts
// are compared: a shared salient term whose surrounding words carry opposite
// sentiment polarity in the two texts is flagged. No model call is involved,
// so repeated requests over unchanged versions return identical reports.

// sentimentWindow is the number of words inspected on each side of a shared
// term when computing its local polarity.
const sentimentWindow = 8

// maxConflictsPerPair caps the reports produced for one persona pair.
const maxConflictsPerPair = 3

var positiveWords = map[string]struct{}{}
var negativeWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"good", "grace", "mercy", "love", "joy", "hope", "peace", "true",
		"truth", "right", "holy", "blessed", "agree", "affirm", "embrace",
		"praise", "harmony", "freely", "gift", "light", "wisdom", "virtue",
	} {
		positiveWords[w] = struct{}{}
	}
	for _, w := range []string{
		"evil", "sin", "wrong", "false", "error", "deny", "denies", "reject",
		"rejects", "contrary", "against", "never", "cannot", "not", "no",
		"disagree", "condemn", "condemns", "contradicts", "darkness",
		"corrupt", "bondage", "refuse", "refuses",
	} {
		negativeWords[w] = struct{}{}
	}
}

var conflictWordRe = regexp.MustCompile(`[a-z']+`)

// DetectConflicts compares the latest version for every persona that has
// commentary on passageKey and reports lexical divergences. Fewer than two
// personas, or no divergence signal, yields an empty list.
func (s *Store) DetectConflicts(ctx context.Context, passageKey string) ([]models.ConflictReport, error) {
	if passageKey == "" {
		return nil, fmt.Errorf("%w: passage key is empty", models.ErrValidation)
	}
	personas, err := s.backing.ListPersonasWithCommentary(ctx, passageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	if len(personas) < 2 {
		return []models.ConflictReport{}, nil
	}

	texts := make(map[string]string, len(personas))
	for _, p := range personas {
		latest, err := s.backing.GetLatestVersion(ctx, passageKey, p)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest for %q: %w", p, err)
		}
		if latest != nil {
			texts[p] = latest.Content
		}
	}

	reports := []models.ConflictReport{}
	for i := 0; i < len(personas); i++ {
		for j := i + 1; j < len(personas); j++ {
			a, b := personas[i], personas[j]
			pair := compareTexts(passageKey, a, texts[a], b, texts[b])
			reports = append(reports, pair...)
		}
	}
	return reports, nil
}

// compareTexts finds shared salient terms with opposite local sentiment
// polarity between the two texts. Terms are examined in alphabetical order
// so output is stable.
func compareTexts(passageKey, personaA, textA, personaB, textB string) []models.ConflictReport {
	wordsA := conflictWords(textA)
	wordsB := conflictWords(textB)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return nil
	}

	shared := sharedSalientTerms(wordsA, wordsB)
	sort.Strings(shared)

	var reports []models.ConflictReport
	for _, term := range shared {
		if len(reports) >= maxConflictsPerPair {
			break
		}
		polA, winA := termPolarity(wordsA, term)
		polB, winB := termPolarity(wordsB, term)
		if polA == 0 || polB == 0 || polA*polB > 0 {
			continue
		}
		reports = append(reports, models.ConflictReport{
			PassageKey: passageKey,
			PersonaA:   personaA,
			PersonaB:   personaB,
			Term:       term,
			ExcerptA:   winA,
			ExcerptB:   winB,
		})
	}
	return reports
}

func conflictWords(text string) []string {
	return conflictWordRe.FindAllString(strings.ToLower(text), -1)
}

// sharedSalientTerms returns terms present in both texts that are neither
// sentiment words nor shorter than four characters.
func sharedSalientTerms(a, b []string) []string {
	setA := make(map[string]struct{}, len(a))
	for _, w := range a {
		setA[w] = struct{}{}
	}
	seen := make(map[string]struct{})
	var shared []string
	for _, w := range b {
		if _, ok := setA[w]; !ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		if len(w) < 4 {
			continue
		}
		if _, pos := positiveWords[w]; pos {
			continue
		}
		if _, neg := negativeWords[w]; neg {
			continue
		}
		shared = append(shared, w)
	}
	return shared
}

// termPolarity sums sentiment hits (+1 positive, -1 negative) within the
// window around the first occurrence of term, and returns the window text.
func termPolarity(words []string, term string) (int, string) {
	pos := -1
	for i, w := range words {
		if w == term {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 0, ""
	}
	start := pos - sentimentWindow
	if start < 0 {
		start = 0
	}
	end := pos + sentimentWindow + 1
	if end > len(words) {
		end = len(words)
	}
	polarity := 0
	for _, w := range words[start:end] {
		if _, ok := positiveWords[w]; ok {
			polarity++
		}
		if _, ok := negativeWords[w]; ok {
			polarity--
		}
	}
	return polarity, strings.Join(words[start:end], " ")
}
