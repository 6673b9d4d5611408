// Package retrieval provides the lexical retrieval index: chunking,
// tokenization, and keyword relevance queries over ingested sources.
package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/psalterlabs/lectio/internal/models"
)

// Chunker splits text into overlapping chunks measured in characters but cut
// on word boundaries, so a chunk never ends or starts mid-word.
type Chunker struct {
	targetSize int
	overlap    int
}

// NewChunker creates a chunker with the given target chunk size and overlap,
// both in characters.
func NewChunker(targetSize, overlap int) *Chunker {
	return &Chunker{
		targetSize: targetSize,
		overlap:    overlap,
	}
}

// Chunk splits text into Chunks for sourceID. Whitespace runs are collapsed
// to single spaces; each chunk holds as many whole words as fit in the target
// size, and consecutive chunks share roughly the configured overlap of
// trailing words. Returns nil for blank text.
func (c *Chunker) Chunk(sourceID, text string) []*models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var chunks []*models.Chunk
	seq := 0
	i := 0
	for i < len(words) {
		// Fill the chunk word by word up to the target size. The first word
		// is always taken, even if longer than the target.
		j := i
		size := 0
		for j < len(words) {
			add := utf8.RuneCountInString(words[j])
			if size > 0 {
				add++ // joining space
			}
			if size+add > c.targetSize && j > i {
				break
			}
			size += add
			j++
		}
		chunks = append(chunks, &models.Chunk{
			ID:            fmt.Sprintf("%s_%s", sourceID, uuid.New().String()[:8]),
			SourceID:      sourceID,
			SequenceIndex: seq,
			Text:          strings.Join(words[i:j], " "),
		})
		seq++
		if j >= len(words) {
			break
		}
		// Walk back whole words until roughly the configured overlap is
		// covered; the next chunk starts there.
		back := j
		carried := 0
		for back > i {
			w := utf8.RuneCountInString(words[back-1]) + 1
			if carried+w > c.overlap {
				break
			}
			carried += w
			back--
		}
		if back <= i {
			back = i + 1 // always make progress
		}
		i = back
	}
	return chunks
}
