// Package models defines core data structures for sources, chunks, and
// commentary versions.
package models

import "time"

// Document represents one ingested source work (e.g. "augustine").
// Documents are immutable after ingestion; re-ingesting a source replaces
// the document and all of its chunks atomically.
type Document struct {
	SourceID   string    `json:"source_id" db:"source_id"`
	OriginPath string    `json:"origin_path,omitempty" db:"origin_path"`
	Length     int       `json:"length" db:"length"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}

// Chunk is a contiguous slice of a document's text, the unit of retrieval.
// Chunks of the same source ordered by SequenceIndex cover the source text
// with overlap; they are never mutated after ingestion.
type Chunk struct {
	ID            string    `json:"id" db:"id"`
	SourceID      string    `json:"source_id" db:"source_id"`
	SequenceIndex int       `json:"sequence_index" db:"sequence_index"`
	Text          string    `json:"text" db:"text"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ScoredChunk is a retrieval hit: a chunk plus its relevance score.
// Ephemeral, never persisted.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}
