package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/psalterlabs/lectio/internal/models"
)

// MemoryStore is an in-memory Store implementation, used in tests and for
// ephemeral setups where nothing should touch disk.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*models.Document
	chunks    map[string][]*models.Chunk                // sourceID -> chunks
	versions  map[string][]*models.CommentaryVersion    // passageKey+"::"+persona -> ascending versions
	passages  map[string]map[string]struct{}            // passageKey -> set of personas
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*models.Document),
		chunks:    make(map[string][]*models.Chunk),
		versions:  make(map[string][]*models.CommentaryVersion),
		passages:  make(map[string]map[string]struct{}),
	}
}

func versionKey(passageKey, persona string) string {
	return passageKey + "::" + persona
}

// ReplaceSource replaces the document and chunk set for doc.SourceID.
func (m *MemoryStore) ReplaceSource(_ context.Context, doc *models.Document, chunks []*models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	docCopy := *doc
	m.documents[doc.SourceID] = &docCopy
	copied := make([]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		ch.CreatedAt = now
		c := *ch
		copied[i] = &c
	}
	m.chunks[doc.SourceID] = copied
	return nil
}

// GetDocument returns the document for sourceID, or (nil, nil) if absent.
func (m *MemoryStore) GetDocument(_ context.Context, sourceID string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[sourceID]
	if !ok {
		return nil, nil
	}
	d := *doc
	return &d, nil
}

// ListDocuments returns all documents ordered by source ID.
func (m *MemoryStore) ListDocuments(_ context.Context) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]*models.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		d := *doc
		docs = append(docs, &d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceID < docs[j].SourceID })
	return docs, nil
}

// GetChunksBySource returns all chunks for sourceID ordered by sequence index.
func (m *MemoryStore) GetChunksBySource(_ context.Context, sourceID string) ([]*models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.chunks[sourceID]
	out := make([]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		c := *ch
		out[i] = &c
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out, nil
}

// DeleteSource removes the document and chunks for sourceID.
func (m *MemoryStore) DeleteSource(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, sourceID)
	delete(m.chunks, sourceID)
	return nil
}

// CountDocuments returns the number of documents.
func (m *MemoryStore) CountDocuments(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.documents)), nil
}

// CountChunks returns the number of chunks across all sources.
func (m *MemoryStore) CountChunks(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, chunks := range m.chunks {
		n += int64(len(chunks))
	}
	return n, nil
}

// CreateVersion appends a commentary version.
func (m *MemoryStore) CreateVersion(_ context.Context, v *models.CommentaryVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.GeneratedAt.IsZero() {
		v.GeneratedAt = time.Now()
	}
	key := versionKey(v.PassageKey, v.Persona)
	for _, existing := range m.versions[key] {
		if existing.VersionNumber == v.VersionNumber {
			return fmt.Errorf("version already exists: %s v%d", key, v.VersionNumber)
		}
	}
	vc := copyVersion(v)
	m.versions[key] = append(m.versions[key], vc)
	sort.Slice(m.versions[key], func(i, j int) bool {
		return m.versions[key][i].VersionNumber < m.versions[key][j].VersionNumber
	})
	if m.passages[v.PassageKey] == nil {
		m.passages[v.PassageKey] = make(map[string]struct{})
	}
	m.passages[v.PassageKey][v.Persona] = struct{}{}
	return nil
}

// GetLatestVersion returns the highest-numbered version, or (nil, nil).
func (m *MemoryStore) GetLatestVersion(_ context.Context, passageKey, persona string) (*models.CommentaryVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.versions[versionKey(passageKey, persona)]
	if len(list) == 0 {
		return nil, nil
	}
	return copyVersion(list[len(list)-1]), nil
}

// GetVersions returns all versions ascending by version number.
func (m *MemoryStore) GetVersions(_ context.Context, passageKey, persona string) ([]*models.CommentaryVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.versions[versionKey(passageKey, persona)]
	out := make([]*models.CommentaryVersion, len(list))
	for i, v := range list {
		out[i] = copyVersion(v)
	}
	return out, nil
}

// AppendFeedback appends a feedback entry and sets the quality score.
func (m *MemoryStore) AppendFeedback(_ context.Context, passageKey, persona string, versionNumber int, entry models.FeedbackEntry, qualityScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now()
	}
	for _, v := range m.versions[versionKey(passageKey, persona)] {
		if v.VersionNumber == versionNumber {
			v.Feedback = append(v.Feedback, entry)
			v.QualityScore = qualityScore
			return nil
		}
	}
	return fmt.Errorf("version not found: %s/%s v%d", passageKey, persona, versionNumber)
}

// ListPersonasWithCommentary returns personas with commentary on the passage.
func (m *MemoryStore) ListPersonasWithCommentary(_ context.Context, passageKey string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.passages[passageKey]
	personas := make([]string, 0, len(set))
	for p := range set {
		personas = append(personas, p)
	}
	sort.Strings(personas)
	return personas, nil
}

// CountVersions returns the total number of versions.
func (m *MemoryStore) CountVersions(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, list := range m.versions {
		n += int64(len(list))
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

func copyVersion(v *models.CommentaryVersion) *models.CommentaryVersion {
	vc := *v
	vc.Feedback = append([]models.FeedbackEntry(nil), v.Feedback...)
	vc.Improvements = append([]string(nil), v.Improvements...)
	return &vc
}
