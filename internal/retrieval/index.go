package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/psalterlabs/lectio/internal/models"
	"github.com/psalterlabs/lectio/internal/storage"
	"go.uber.org/zap"
)

// DefaultTopK is the number of chunks returned when a caller passes a
// non-positive top-k.
const DefaultTopK = 5

// sourceIndex holds the queryable state for one ingested source. It is built
// off-lock and swapped in whole, so readers never see a partial chunk set.
type sourceIndex struct {
	chunks    []*models.Chunk
	tokenSets []map[string]struct{}
	// chunkFreq counts, per term, how many chunks of this source contain it.
	// Used for the inverse-frequency weighting in Query.
	chunkFreq map[string]int
}

// Index is the keyword retrieval index over ingested sources. Matching is
// purely lexical (token-set intersection with inverse chunk-frequency
// weighting), so results are deterministic and explainable.
//
// The in-memory posting state is rebuilt from the injected store on Reload;
// Ingest persists through the store before publishing the new chunk set.
type Index struct {
	mu        sync.RWMutex
	sources   map[string]*sourceIndex
	store     storage.Store
	chunker   *Chunker
	minLength int
	logger    *zap.Logger // optional; when set, logs debug events

	// ingestMu guards ingestLocks; the per-source lock serializes Ingest for
	// one source across the persist and the publish, so the store and the
	// in-memory chunk set never diverge under concurrent re-ingestion.
	ingestMu    sync.Mutex
	ingestLocks map[string]*sync.Mutex
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets a logger for debug output (sources ingested, query stats).
func WithLogger(l *zap.Logger) IndexOption {
	return func(idx *Index) { idx.logger = l }
}

// NewIndex creates a retrieval index backed by store. store may be nil for a
// purely in-memory index (tests). minLength is the minimum raw text length
// accepted by Ingest.
func NewIndex(store storage.Store, chunker *Chunker, minLength int, opts ...IndexOption) *Index {
	idx := &Index{
		sources:     make(map[string]*sourceIndex),
		store:       store,
		chunker:     chunker,
		minLength:   minLength,
		ingestLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest chunks rawText and replaces any prior chunk set for sourceID.
// The new chunk set is persisted first and published to readers in one swap;
// on any failure the previous state remains untouched. Concurrent ingests of
// the same source are serialized, so the store and the published chunk set
// always agree on which ingest won. Returns
// models.ErrIngest for empty, too-short, or non-UTF-8 input.
func (idx *Index) Ingest(ctx context.Context, sourceID, rawText string) error {
	if sourceID == "" {
		return fmt.Errorf("%w: source id is empty", models.ErrValidation)
	}
	if !utf8.ValidString(rawText) {
		return fmt.Errorf("%w: source %q: input is not valid UTF-8 text", models.ErrIngest, sourceID)
	}
	chunks := idx.chunker.Chunk(sourceID, rawText)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: source %q: raw text is empty", models.ErrIngest, sourceID)
	}
	if len(rawText) < idx.minLength {
		return fmt.Errorf("%w: source %q: raw text length %d below minimum %d",
			models.ErrIngest, sourceID, len(rawText), idx.minLength)
	}

	src := buildSourceIndex(chunks)

	lock := idx.lockFor(sourceID)
	lock.Lock()
	defer lock.Unlock()

	if idx.store != nil {
		doc := &models.Document{
			SourceID: sourceID,
			Length:   len(rawText),
		}
		if err := idx.store.ReplaceSource(ctx, doc, chunks); err != nil {
			return fmt.Errorf("failed to persist source %q: %w", sourceID, err)
		}
	}

	idx.mu.Lock()
	idx.sources[sourceID] = src
	idx.mu.Unlock()

	if idx.logger != nil {
		idx.logger.Debug("source ingested",
			zap.String("source_id", sourceID),
			zap.Int("chunks", len(chunks)),
			zap.Int("length", len(rawText)),
		)
	}
	return nil
}

func (idx *Index) lockFor(sourceID string) *sync.Mutex {
	idx.ingestMu.Lock()
	defer idx.ingestMu.Unlock()
	l, ok := idx.ingestLocks[sourceID]
	if !ok {
		l = &sync.Mutex{}
		idx.ingestLocks[sourceID] = l
	}
	return l
}

// Query returns the topK chunks of sourceID most relevant to text, ordered by
// descending score with ties broken by ascending sequence index. The score of
// a chunk is Σ over matched terms t of 1/log(1+chunkFrequency(t)), so terms
// common to every chunk of the source count less than rare ones. An unknown
// source or a query with no matching terms returns an empty result, not an
// error.
func (idx *Index) Query(ctx context.Context, sourceID, text string, topK int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	queryTokens := TokenSet(text)
	if len(queryTokens) == 0 {
		return []models.ScoredChunk{}, nil
	}

	idx.mu.RLock()
	src, ok := idx.sources[sourceID]
	idx.mu.RUnlock()
	if !ok {
		return []models.ScoredChunk{}, nil
	}

	scored := make([]models.ScoredChunk, 0, topK)
	for i, set := range src.tokenSets {
		var score float64
		for t := range queryTokens {
			if _, present := set[t]; !present {
				continue
			}
			score += 1 / math.Log(1+float64(src.chunkFreq[t]))
		}
		if score > 0 {
			scored = append(scored, models.ScoredChunk{Chunk: src.chunks[i], Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.SequenceIndex < scored[j].Chunk.SequenceIndex
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// QueryMulti fans Query out over sourceIDs and returns per-source ranked
// results. No cross-source merge is performed; callers weight sources
// themselves.
func (idx *Index) QueryMulti(ctx context.Context, sourceIDs []string, text string, topKPerSource int) (map[string][]models.ScoredChunk, error) {
	results := make(map[string][]models.ScoredChunk, len(sourceIDs))
	for _, id := range sourceIDs {
		hits, err := idx.Query(ctx, id, text, topKPerSource)
		if err != nil {
			return nil, err
		}
		results[id] = hits
	}
	return results, nil
}

// Sources returns the IDs of all ingested sources, unordered.
func (idx *Index) Sources() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.sources))
	for id := range idx.sources {
		ids = append(ids, id)
	}
	return ids
}

// ChunkCount returns the number of chunks indexed for sourceID.
func (idx *Index) ChunkCount(sourceID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	src, ok := idx.sources[sourceID]
	if !ok {
		return 0
	}
	return len(src.chunks)
}

// Reload rebuilds the in-memory index from the backing store. Called once at
// startup so previously ingested sources are queryable without re-ingestion.
func (idx *Index) Reload(ctx context.Context) error {
	if idx.store == nil {
		return nil
	}
	docs, err := idx.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	rebuilt := make(map[string]*sourceIndex, len(docs))
	for _, doc := range docs {
		chunks, err := idx.store.GetChunksBySource(ctx, doc.SourceID)
		if err != nil {
			return fmt.Errorf("failed to load chunks for %q: %w", doc.SourceID, err)
		}
		if len(chunks) == 0 {
			continue
		}
		rebuilt[doc.SourceID] = buildSourceIndex(chunks)
	}

	idx.mu.Lock()
	idx.sources = rebuilt
	idx.mu.Unlock()

	if idx.logger != nil {
		idx.logger.Debug("index reloaded", zap.Int("sources", len(rebuilt)))
	}
	return nil
}

func buildSourceIndex(chunks []*models.Chunk) *sourceIndex {
	src := &sourceIndex{
		chunks:    chunks,
		tokenSets: make([]map[string]struct{}, len(chunks)),
		chunkFreq: make(map[string]int),
	}
	for i, ch := range chunks {
		set := TokenSet(ch.Text)
		src.tokenSets[i] = set
		for t := range set {
			src.chunkFreq[t]++
		}
	}
	return src
}
