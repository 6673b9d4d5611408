// Package commentary manages the append-only version history of generated
// commentary, user feedback, quality scoring, and conflict detection.
package commentary

import (
	"context"
	"fmt"
	"sync"

	"github.com/psalterlabs/lectio/internal/models"
	"github.com/psalterlabs/lectio/internal/persona"
	"github.com/psalterlabs/lectio/internal/storage"
	"go.uber.org/zap"
)

// Config holds the quality-score and regeneration policy.
type Config struct {
	// NeutralScore is the quality score assigned to a new version before any
	// feedback arrives.
	NeutralScore float64
	// RegenThreshold is the quality score below which regeneration is
	// signalled.
	RegenThreshold float64
	// MinRatings is the minimum number of ratings on the latest version
	// before the threshold can trigger the regeneration signal.
	MinRatings int
}

// DefaultConfig returns the policy used by the original application:
// neutral 0.7, regenerate below 0.4 after at least 3 ratings.
func DefaultConfig() Config {
	return Config{
		NeutralScore:   0.7,
		RegenThreshold: 0.4,
		MinRatings:     3,
	}
}

// Store is the versioned commentary store. Writes for a given
// (passage key, persona) are serialized by a per-key lock; keys are
// independent, so no cross-key coordination happens.
type Store struct {
	backing storage.Store
	cfg     Config
	logger  *zap.Logger // optional; when set, logs debug events

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for debug output (versions added, regeneration
// signals).
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a commentary store on top of backing.
func NewStore(backing storage.Store, cfg Config, opts ...StoreOption) *Store {
	s := &Store{
		backing: backing,
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lockFor(passageKey, persona string) *sync.Mutex {
	key := passageKey + "::" + persona
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func validateKey(passageKey, personaName string) (persona.Persona, error) {
	if passageKey == "" {
		return "", fmt.Errorf("%w: passage key is empty", models.ErrValidation)
	}
	return persona.Parse(personaName)
}

// GetLatest returns the highest-numbered version for the key, or (nil, nil)
// if no commentary has been generated yet.
func (s *Store) GetLatest(ctx context.Context, passageKey, personaName string) (*models.CommentaryVersion, error) {
	if _, err := validateKey(passageKey, personaName); err != nil {
		return nil, err
	}
	return s.backing.GetLatestVersion(ctx, passageKey, personaName)
}

// AddVersion creates the next version for the key with the neutral quality
// score. Version numbers are gap-free and start at 1; this is the only way
// versions come into existence.
func (s *Store) AddVersion(ctx context.Context, passageKey, personaName, content string, improvements []string) (*models.CommentaryVersion, error) {
	if _, err := validateKey(passageKey, personaName); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is empty", models.ErrValidation)
	}

	lock := s.lockFor(passageKey, personaName)
	lock.Lock()
	defer lock.Unlock()

	latest, err := s.backing.GetLatestVersion(ctx, passageKey, personaName)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}
	next := 1
	if latest != nil {
		next = latest.VersionNumber + 1
	}

	v := &models.CommentaryVersion{
		PassageKey:    passageKey,
		Persona:       personaName,
		VersionNumber: next,
		Content:       content,
		QualityScore:  s.cfg.NeutralScore,
		Improvements:  improvements,
	}
	if err := s.backing.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("commentary version added",
			zap.String("passage_key", passageKey),
			zap.String("persona", personaName),
			zap.Int("version", next),
		)
	}
	return v, nil
}

// AddFeedback appends a feedback entry to the latest version for the key and
// recomputes its quality score. rating may be nil (comment-only feedback,
// stored but not scored); a non-nil rating outside [1,5] is rejected with
// models.ErrValidation. Feedback on a key with no versions is rejected with
// models.ErrNotFound, never silently creating a placeholder version.
//
// Each rating r maps to (r-1)/4 in [0,1] and the quality score is the mean
// over all ratings on the version. When the score drops below the configured
// threshold with at least MinRatings ratings, the result carries the
// NewVersionGenerated signal; actually generating the next version is the
// caller's job.
func (s *Store) AddFeedback(ctx context.Context, passageKey, personaName string, rating *int, comment string) (*models.FeedbackResult, error) {
	if _, err := validateKey(passageKey, personaName); err != nil {
		return nil, err
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, fmt.Errorf("%w: rating %d out of range [1,5]", models.ErrValidation, *rating)
	}

	lock := s.lockFor(passageKey, personaName)
	lock.Lock()
	defer lock.Unlock()

	latest, err := s.backing.GetLatestVersion(ctx, passageKey, personaName)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no commentary for passage %q persona %q", models.ErrNotFound, passageKey, personaName)
	}

	entry := models.FeedbackEntry{Rating: rating, Comment: comment}
	ratings := collectRatings(latest.Feedback)
	if rating != nil {
		ratings = append(ratings, *rating)
	}
	score := latest.QualityScore
	if len(ratings) > 0 {
		score = qualityFromRatings(ratings)
	}

	if err := s.backing.AppendFeedback(ctx, passageKey, personaName, latest.VersionNumber, entry, score); err != nil {
		return nil, fmt.Errorf("failed to append feedback: %w", err)
	}

	regen := score < s.cfg.RegenThreshold && len(ratings) >= s.cfg.MinRatings
	if regen && s.logger != nil {
		s.logger.Debug("regeneration signalled",
			zap.String("passage_key", passageKey),
			zap.String("persona", personaName),
			zap.Int("version", latest.VersionNumber),
			zap.Float64("quality_score", score),
		)
	}
	return &models.FeedbackResult{
		QualityScore:        score,
		NewVersionGenerated: regen,
	}, nil
}

// ListVersions returns summaries of every version for the key, ascending by
// version number. Read-only; an unknown key yields an empty list.
func (s *Store) ListVersions(ctx context.Context, passageKey, personaName string) ([]models.VersionSummary, error) {
	if _, err := validateKey(passageKey, personaName); err != nil {
		return nil, err
	}
	versions, err := s.backing.GetVersions(ctx, passageKey, personaName)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	summaries := make([]models.VersionSummary, len(versions))
	for i, v := range versions {
		summaries[i] = models.VersionSummary{
			VersionNumber: v.VersionNumber,
			GeneratedAt:   v.GeneratedAt,
			QualityScore:  v.QualityScore,
			FeedbackCount: len(v.Feedback),
			Improvements:  v.Improvements,
		}
	}
	return summaries, nil
}

func collectRatings(feedback []models.FeedbackEntry) []int {
	var ratings []int
	for _, fb := range feedback {
		if fb.Rating != nil {
			ratings = append(ratings, *fb.Rating)
		}
	}
	return ratings
}

// qualityFromRatings maps each rating r in [1,5] to (r-1)/4 and averages.
func qualityFromRatings(ratings []int) float64 {
	var sum float64
	for _, r := range ratings {
		sum += float64(r-1) / 4
	}
	return sum / float64(len(ratings))
}
