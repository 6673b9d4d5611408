// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/psalterlabs/lectio/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		source_id TEXT PRIMARY KEY,
		origin_path TEXT,
		length INTEGER NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		sequence_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (source_id) REFERENCES documents(source_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id, sequence_index);

	CREATE TABLE IF NOT EXISTS commentary_versions (
		passage_key TEXT NOT NULL,
		persona TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		content TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		quality_score REAL NOT NULL,
		improvements TEXT,
		PRIMARY KEY (passage_key, persona, version_number)
	);

	CREATE INDEX IF NOT EXISTS idx_versions_passage ON commentary_versions(passage_key);

	CREATE TABLE IF NOT EXISTS commentary_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		passage_key TEXT NOT NULL,
		persona TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		rating INTEGER,
		comment TEXT,
		submitted_at TIMESTAMP NOT NULL,
		FOREIGN KEY (passage_key, persona, version_number)
			REFERENCES commentary_versions(passage_key, persona, version_number)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_version
		ON commentary_feedback(passage_key, persona, version_number);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceSource replaces the document and chunk set for doc.SourceID in a
// single transaction, so readers never observe a mixed old/new chunk set.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, doc.SourceID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source_id = ?`, doc.SourceID); err != nil {
		return fmt.Errorf("failed to delete old document: %w", err)
	}

	now := time.Now()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (source_id, origin_path, length, ingested_at) VALUES (?, ?, ?, ?)`,
		doc.SourceID, doc.OriginPath, doc.Length, doc.IngestedAt,
	); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source_id, sequence_index, text, created_at) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		ch.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.SourceID, ch.SequenceIndex, ch.Text, ch.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// GetDocument returns the document for sourceID, or (nil, nil) if absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, sourceID string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, origin_path, length, ingested_at FROM documents WHERE source_id = ?`,
		sourceID,
	).Scan(&doc.SourceID, &doc.OriginPath, &doc.Length, &doc.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns all documents ordered by source ID.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, origin_path, length, ingested_at FROM documents ORDER BY source_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.SourceID, &doc.OriginPath, &doc.Length, &doc.IngestedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// GetChunksBySource returns all chunks for sourceID ordered by sequence index.
func (s *SQLiteStore) GetChunksBySource(ctx context.Context, sourceID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, sequence_index, text, created_at
		 FROM chunks WHERE source_id = ? ORDER BY sequence_index`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.SourceID, &ch.SequenceIndex, &ch.Text, &ch.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

// DeleteSource removes the document and its chunks.
func (s *SQLiteStore) DeleteSource(ctx context.Context, sourceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source_id = ?`, sourceID); err != nil {
		return err
	}
	return tx.Commit()
}

// CountDocuments returns the total number of ingested documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CreateVersion inserts a commentary version.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v *models.CommentaryVersion) error {
	improvementsJSON, err := json.Marshal(v.Improvements)
	if err != nil {
		return fmt.Errorf("failed to marshal improvements: %w", err)
	}
	if v.GeneratedAt.IsZero() {
		v.GeneratedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO commentary_versions
		 (passage_key, persona, version_number, content, generated_at, quality_score, improvements)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.PassageKey, v.Persona, v.VersionNumber, v.Content, v.GeneratedAt, v.QualityScore, string(improvementsJSON),
	)
	return err
}

// GetLatestVersion returns the highest-numbered version for the key, or
// (nil, nil) if none exists.
func (s *SQLiteStore) GetLatestVersion(ctx context.Context, passageKey, persona string) (*models.CommentaryVersion, error) {
	v, err := s.scanVersion(s.db.QueryRowContext(ctx,
		`SELECT passage_key, persona, version_number, content, generated_at, quality_score, improvements
		 FROM commentary_versions WHERE passage_key = ? AND persona = ?
		 ORDER BY version_number DESC LIMIT 1`,
		passageKey, persona,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadFeedback(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetVersions returns all versions for the key ascending by version number.
func (s *SQLiteStore) GetVersions(ctx context.Context, passageKey, persona string) ([]*models.CommentaryVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT passage_key, persona, version_number, content, generated_at, quality_score, improvements
		 FROM commentary_versions WHERE passage_key = ? AND persona = ?
		 ORDER BY version_number`,
		passageKey, persona,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.CommentaryVersion
	for rows.Next() {
		v, err := s.scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, v := range versions {
		if err := s.loadFeedback(ctx, v); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) scanVersion(row rowScanner) (*models.CommentaryVersion, error) {
	var v models.CommentaryVersion
	var improvementsJSON sql.NullString
	if err := row.Scan(&v.PassageKey, &v.Persona, &v.VersionNumber, &v.Content,
		&v.GeneratedAt, &v.QualityScore, &improvementsJSON); err != nil {
		return nil, err
	}
	if improvementsJSON.Valid && improvementsJSON.String != "" {
		if err := json.Unmarshal([]byte(improvementsJSON.String), &v.Improvements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal improvements: %w", err)
		}
	}
	return &v, nil
}

func (s *SQLiteStore) loadFeedback(ctx context.Context, v *models.CommentaryVersion) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rating, comment, submitted_at FROM commentary_feedback
		 WHERE passage_key = ? AND persona = ? AND version_number = ?
		 ORDER BY id`,
		v.PassageKey, v.Persona, v.VersionNumber,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var fb models.FeedbackEntry
		var rating sql.NullInt64
		var comment sql.NullString
		if err := rows.Scan(&rating, &comment, &fb.SubmittedAt); err != nil {
			return err
		}
		if rating.Valid {
			r := int(rating.Int64)
			fb.Rating = &r
		}
		fb.Comment = comment.String
		v.Feedback = append(v.Feedback, fb)
	}
	return rows.Err()
}

// AppendFeedback inserts a feedback row and updates the version's quality
// score in one transaction.
func (s *SQLiteStore) AppendFeedback(ctx context.Context, passageKey, persona string, versionNumber int, entry models.FeedbackEntry, qualityScore float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rating interface{}
	if entry.Rating != nil {
		rating = *entry.Rating
	}
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO commentary_feedback (passage_key, persona, version_number, rating, comment, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		passageKey, persona, versionNumber, rating, entry.Comment, entry.SubmittedAt,
	); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE commentary_versions SET quality_score = ?
		 WHERE passage_key = ? AND persona = ? AND version_number = ?`,
		qualityScore, passageKey, persona, versionNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update quality score: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read quality score update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("version not found: %s/%s v%d", passageKey, persona, versionNumber)
	}
	return tx.Commit()
}

// ListPersonasWithCommentary returns personas with at least one version for
// the passage, ordered by name.
func (s *SQLiteStore) ListPersonasWithCommentary(ctx context.Context, passageKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT persona FROM commentary_versions WHERE passage_key = ? ORDER BY persona`,
		passageKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var personas []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// CountVersions returns the total number of commentary versions.
func (s *SQLiteStore) CountVersions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commentary_versions`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
