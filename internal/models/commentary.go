package models

import "time"

// FeedbackEntry is one piece of user feedback on a commentary version.
// Rating is nil when the user left only a comment; unrated entries are
// stored but do not move the quality score.
type FeedbackEntry struct {
	Rating      *int      `json:"rating,omitempty" db:"rating"`
	Comment     string    `json:"comment,omitempty" db:"comment"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// CommentaryVersion is one generated commentary text for a
// (passage key, persona) pair. Versions are append-only: feedback entries
// accumulate and the quality score is recomputed, but content never changes
// and versions are never deleted.
type CommentaryVersion struct {
	PassageKey    string          `json:"passage_key" db:"passage_key"`
	Persona       string          `json:"persona" db:"persona"`
	VersionNumber int             `json:"version_number" db:"version_number"`
	Content       string          `json:"content" db:"content"`
	GeneratedAt   time.Time       `json:"generated_at" db:"generated_at"`
	QualityScore  float64         `json:"quality_score" db:"quality_score"`
	Feedback      []FeedbackEntry `json:"feedback,omitempty"`
	Improvements  []string        `json:"improvements,omitempty"`
}

// VersionSummary is the audit/UI view of a version, without the full content.
type VersionSummary struct {
	VersionNumber int       `json:"version_number"`
	GeneratedAt   time.Time `json:"generated_at"`
	QualityScore  float64   `json:"quality_score"`
	FeedbackCount int       `json:"feedback_count"`
	Improvements  []string  `json:"improvements,omitempty"`
}

// FeedbackResult is the outcome of submitting feedback: the recomputed
// quality score and whether accumulated negative feedback warrants
// regenerating the commentary. NewVersionGenerated is a signal only; the
// caller decides whether to actually generate and add the next version.
type FeedbackResult struct {
	QualityScore        float64 `json:"quality_score"`
	NewVersionGenerated bool    `json:"new_version_generated"`
}

// ConflictReport flags a lexical divergence between two personas' latest
// commentary on the same passage. Ephemeral, recomputed on each request.
type ConflictReport struct {
	PassageKey string `json:"passage_key"`
	PersonaA   string `json:"persona_a"`
	PersonaB   string `json:"persona_b"`
	Term       string `json:"term"`
	ExcerptA   string `json:"excerpt_a"`
	ExcerptB   string `json:"excerpt_b"`
}
