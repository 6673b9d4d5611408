package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psalterlabs/lectio/internal/models"
	"github.com/psalterlabs/lectio/internal/storage"
)

func newTestIndex() *Index {
	return NewIndex(storage.NewMemoryStore(), NewChunker(60, 15), 10)
}

func TestIndex_IngestValidation(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()

	tests := []struct {
		name     string
		sourceID string
		text     string
		wantErr  error
	}{
		{"empty source id", "", "long enough text for ingestion", models.ErrValidation},
		{"empty text", "src", "", models.ErrIngest},
		{"blank text", "src", "   \n ", models.ErrIngest},
		{"below minimum length", "src", "tiny", models.ErrIngest},
		{"invalid utf-8", "src", "valid prefix \xff\xfe then more text", models.ErrIngest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := idx.Ingest(ctx, tt.sourceID, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIndex_QueryUnknownSource(t *testing.T) {
	idx := newTestIndex()
	hits, err := idx.Query(context.Background(), "nope", "grace", 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("unknown source should yield empty results, got %d", len(hits))
	}
}

func TestIndex_QueryNoMatch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	if err := idx.Ingest(ctx, "src", "grace abounds in the writings of the saints"); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Query(ctx, "src", "quantum electrodynamics", 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestIndex_RareTermRanksFirst(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	// "grace" appears throughout; "theodicy" appears exactly once.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("grace abounds toward sinners seeking forgiveness daily. ")
	}
	b.WriteString("theodicy concerns grace confronting suffering honestly. ")
	for i := 0; i < 20; i++ {
		b.WriteString("grace abounds toward sinners seeking forgiveness daily. ")
	}
	if err := idx.Ingest(ctx, "src", b.String()); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Query(ctx, "src", "theodicy grace", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if !strings.Contains(hits[0].Chunk.Text, "theodicy") {
		t.Errorf("chunk with rare term should rank first, got %q", hits[0].Chunk.Text)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not descending at %d: %f > %f", i, hits[i].Score, hits[i-1].Score)
		}
	}
}

func TestIndex_TieBreakBySequence(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	// Every chunk contains "grace", so all scores are equal and order must
	// fall back to ascending sequence index.
	text := strings.Repeat("grace mercy peace hope love joy wisdom light ", 10)
	if err := idx.Ingest(ctx, "src", text); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Query(ctx, "src", "grace", 4)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) < 2 {
		t.Fatalf("expected multiple hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score != hits[i-1].Score {
			t.Fatalf("expected equal scores, got %f and %f", hits[i-1].Score, hits[i].Score)
		}
		if hits[i].Chunk.SequenceIndex <= hits[i-1].Chunk.SequenceIndex {
			t.Errorf("sequence indexes not ascending: %d then %d",
				hits[i-1].Chunk.SequenceIndex, hits[i].Chunk.SequenceIndex)
		}
	}
}

func TestIndex_TopKLimit(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	text := strings.Repeat("grace mercy peace hope love joy wisdom light ", 10)
	if err := idx.Ingest(ctx, "src", text); err != nil {
		t.Fatal(err)
	}
	hits, _ := idx.Query(ctx, "src", "grace", 2)
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}
	hits, _ = idx.Query(ctx, "src", "grace", 0)
	if len(hits) > DefaultTopK {
		t.Errorf("non-positive top-k should cap at %d, got %d", DefaultTopK, len(hits))
	}
}

func TestIndex_ReingestReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	if err := idx.Ingest(ctx, "src", "theodicy is the theme of this first corpus edition"); err != nil {
		t.Fatal(err)
	}
	if err := idx.Ingest(ctx, "src", "charity is the theme of the revised corpus edition"); err != nil {
		t.Fatal(err)
	}
	hits, _ := idx.Query(ctx, "src", "theodicy", 5)
	if len(hits) != 0 {
		t.Errorf("old content should be gone after re-ingest, got %d hits", len(hits))
	}
	hits, _ = idx.Query(ctx, "src", "charity", 5)
	if len(hits) == 0 {
		t.Error("new content should be queryable after re-ingest")
	}
	if got := len(idx.Sources()); got != 1 {
		t.Errorf("expected 1 source, got %d", got)
	}
}

func TestIndex_Reload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	idx := NewIndex(store, NewChunker(60, 15), 10)
	if err := idx.Ingest(ctx, "src", "theodicy concerns suffering reconciled with divine goodness"); err != nil {
		t.Fatal(err)
	}

	// A fresh index over the same store starts empty and recovers on Reload.
	fresh := NewIndex(store, NewChunker(60, 15), 10)
	if hits, _ := fresh.Query(ctx, "src", "theodicy", 5); len(hits) != 0 {
		t.Fatalf("fresh index should be empty, got %d hits", len(hits))
	}
	if err := fresh.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	hits, err := fresh.Query(ctx, "src", "theodicy", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Error("reloaded index should answer queries")
	}
}

func TestIndex_QueryMulti(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	if err := idx.Ingest(ctx, "a", "grace abounds in the teaching of this first author"); err != nil {
		t.Fatal(err)
	}
	if err := idx.Ingest(ctx, "b", "reason orders the argument of this second author"); err != nil {
		t.Fatal(err)
	}
	results, err := idx.QueryMulti(ctx, []string{"a", "b"}, "grace", 5)
	if err != nil {
		t.Fatalf("QueryMulti() error = %v", err)
	}
	if len(results["a"]) == 0 {
		t.Error("source a should match")
	}
	if len(results["b"]) != 0 {
		t.Errorf("source b should not match, got %d hits", len(results["b"]))
	}
}

func TestIndex_ChunkCount(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex()
	if idx.ChunkCount("src") != 0 {
		t.Error("unknown source should count 0 chunks")
	}
	text := strings.Repeat("grace mercy peace hope love joy wisdom light ", 10)
	if err := idx.Ingest(ctx, "src", text); err != nil {
		t.Fatal(err)
	}
	if idx.ChunkCount("src") < 2 {
		t.Errorf("expected multiple chunks, got %d", idx.ChunkCount("src"))
	}
}

// gateStore lets a test hold the first ReplaceSource open after it has
// persisted, pinning an ingest between the store write and the index publish.
type gateStore struct {
	storage.Store
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gateStore) ReplaceSource(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	if err := g.Store.ReplaceSource(ctx, doc, chunks); err != nil {
		return err
	}
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return nil
}

func TestIndex_ConcurrentIngestSerialized(t *testing.T) {
	ctx := context.Background()
	gs := &gateStore{
		Store:   storage.NewMemoryStore(),
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	idx := NewIndex(gs, NewChunker(60, 15), 10)

	first := strings.Repeat("alpha grace mercy peace ", 10)
	second := strings.Repeat("beta hope charity faith ", 10)

	done := make(chan error, 2)
	go func() { done <- idx.Ingest(ctx, "augustine", first) }()
	<-gs.entered
	go func() { done <- idx.Ingest(ctx, "augustine", second) }()

	// The second ingest must queue behind the first, not overtake it.
	select {
	case err := <-done:
		t.Fatalf("ingest completed while another ingest of the same source was mid-flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gs.release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}

	// The second ingest ran last, so both the store and the queryable state
	// must hold its chunks and nothing of the first.
	chunks, err := gs.GetChunksBySource(ctx, "augustine")
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range chunks {
		if strings.Contains(ch.Text, "alpha") {
			t.Errorf("store still holds replaced chunk %q", ch.Text)
		}
	}
	hits, err := idx.Query(ctx, "augustine", "beta", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("index does not serve the chunks the store holds")
	}
	if stale, err := idx.Query(ctx, "augustine", "alpha", 5); err != nil || len(stale) != 0 {
		t.Errorf("index still serves replaced chunks: %d hits, err %v", len(stale), err)
	}
}
