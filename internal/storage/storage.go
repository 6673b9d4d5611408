// Package storage defines the persistence interface and its SQLite and
// in-memory implementations.
package storage

import (
	"context"

	"github.com/psalterlabs/lectio/internal/models"
)

// Store is the backing storage for ingested sources and commentary history.
// Implementations must make ReplaceSource, CreateVersion, and AppendFeedback
// atomic: a failed call leaves prior state unchanged.
type Store interface {
	// ReplaceSource atomically replaces the document and all chunks for
	// doc.SourceID with the given set.
	ReplaceSource(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error
	// GetDocument returns the document for sourceID, or (nil, nil) if the
	// source was never ingested.
	GetDocument(ctx context.Context, sourceID string) (*models.Document, error)
	// ListDocuments returns all ingested documents ordered by source ID.
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	// GetChunksBySource returns all chunks for sourceID ordered by sequence index.
	GetChunksBySource(ctx context.Context, sourceID string) ([]*models.Chunk, error)
	// DeleteSource removes the document and all chunks for sourceID.
	DeleteSource(ctx context.Context, sourceID string) error
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	// CreateVersion inserts a commentary version with its initial fields.
	CreateVersion(ctx context.Context, v *models.CommentaryVersion) error
	// GetLatestVersion returns the highest-numbered version for the key with
	// feedback loaded, or (nil, nil) if no version exists.
	GetLatestVersion(ctx context.Context, passageKey, persona string) (*models.CommentaryVersion, error)
	// GetVersions returns all versions for the key ascending by version
	// number, with feedback loaded.
	GetVersions(ctx context.Context, passageKey, persona string) ([]*models.CommentaryVersion, error)
	// AppendFeedback appends a feedback entry to the given version and sets
	// its recomputed quality score in the same transaction.
	AppendFeedback(ctx context.Context, passageKey, persona string, versionNumber int, entry models.FeedbackEntry, qualityScore float64) error
	// ListPersonasWithCommentary returns the personas that have at least one
	// version for passageKey, ordered by persona name.
	ListPersonasWithCommentary(ctx context.Context, passageKey string) ([]string, error)
	CountVersions(ctx context.Context) (int64, error)

	Close() error
}
