package commentary

import (
	"context"
	"errors"
	"testing"

	"github.com/psalterlabs/lectio/internal/models"
	"github.com/psalterlabs/lectio/internal/storage"
)

func newTestStore() *Store {
	return NewStore(storage.NewMemoryStore(), DefaultConfig())
}

func intPtr(n int) *int { return &n }

func TestStore_AddVersionNumbering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	for want := 1; want <= 3; want++ {
		v, err := s.AddVersion(ctx, "John 3:16", "augustine", "commentary text", nil)
		if err != nil {
			t.Fatalf("AddVersion() error = %v", err)
		}
		if v.VersionNumber != want {
			t.Errorf("version number = %d, want %d", v.VersionNumber, want)
		}
		if v.QualityScore != 0.7 {
			t.Errorf("new version quality score = %f, want 0.7", v.QualityScore)
		}
	}

	// Other keys number independently.
	v, err := s.AddVersion(ctx, "John 3:16", "aquinas", "other voice", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.VersionNumber != 1 {
		t.Errorf("independent key should start at 1, got %d", v.VersionNumber)
	}
	v, err = s.AddVersion(ctx, "Psalm 23", "augustine", "other passage", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.VersionNumber != 1 {
		t.Errorf("independent passage should start at 1, got %d", v.VersionNumber)
	}
}

func TestStore_AddVersionValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if _, err := s.AddVersion(ctx, "", "augustine", "text", nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty passage key: error = %v, want ErrValidation", err)
	}
	if _, err := s.AddVersion(ctx, "John 3:16", "origen", "text", nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown persona: error = %v, want ErrValidation", err)
	}
	if _, err := s.AddVersion(ctx, "John 3:16", "augustine", "", nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty content: error = %v, want ErrValidation", err)
	}
}

func TestStore_FeedbackWithoutVersion(t *testing.T) {
	s := newTestStore()
	_, err := s.AddFeedback(context.Background(), "John 3:16", "augustine", intPtr(4), "")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("feedback without versions: error = %v, want ErrNotFound", err)
	}
}

func TestStore_FeedbackRatingRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	if _, err := s.AddVersion(ctx, "John 3:16", "augustine", "text", nil); err != nil {
		t.Fatal(err)
	}
	for _, r := range []int{0, 6, -1} {
		if _, err := s.AddFeedback(ctx, "John 3:16", "augustine", intPtr(r), ""); !errors.Is(err, models.ErrValidation) {
			t.Errorf("rating %d: error = %v, want ErrValidation", r, err)
		}
	}
}

func TestStore_QualityScoring(t *testing.T) {
	tests := []struct {
		name      string
		ratings   []int
		wantScore float64
		wantRegen bool
	}{
		{"all fives", []int{5, 5, 5}, 1.0, false},
		{"all ones", []int{1, 1, 1}, 0.0, true},
		{"all twos", []int{2, 2, 2}, 0.25, true},
		{"mixed above threshold", []int{3, 4, 5}, 0.75, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore()
			if _, err := s.AddVersion(ctx, "Romans 8", "augustine", "text", nil); err != nil {
				t.Fatal(err)
			}
			var last *models.FeedbackResult
			for _, r := range tt.ratings {
				result, err := s.AddFeedback(ctx, "Romans 8", "augustine", intPtr(r), "")
				if err != nil {
					t.Fatal(err)
				}
				last = result
			}
			if last.QualityScore != tt.wantScore {
				t.Errorf("quality score = %f, want %f", last.QualityScore, tt.wantScore)
			}
			if last.NewVersionGenerated != tt.wantRegen {
				t.Errorf("regeneration signal = %v, want %v", last.NewVersionGenerated, tt.wantRegen)
			}
		})
	}
}

func TestStore_RegenNeedsMinRatings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	if _, err := s.AddVersion(ctx, "Romans 8", "augustine", "text", nil); err != nil {
		t.Fatal(err)
	}
	// Two ratings of 1 put the score well below threshold, but the signal
	// holds off until the third rating.
	for i := 0; i < 2; i++ {
		result, err := s.AddFeedback(ctx, "Romans 8", "augustine", intPtr(1), "")
		if err != nil {
			t.Fatal(err)
		}
		if result.NewVersionGenerated {
			t.Fatalf("signal fired after %d ratings", i+1)
		}
	}
	result, err := s.AddFeedback(ctx, "Romans 8", "augustine", intPtr(1), "")
	if err != nil {
		t.Fatal(err)
	}
	if !result.NewVersionGenerated {
		t.Error("signal should fire on the third low rating")
	}
}

func TestStore_CommentOnlyFeedback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	if _, err := s.AddVersion(ctx, "Romans 8", "augustine", "text", nil); err != nil {
		t.Fatal(err)
	}
	result, err := s.AddFeedback(ctx, "Romans 8", "augustine", nil, "please expand on verse 28")
	if err != nil {
		t.Fatalf("comment-only feedback error = %v", err)
	}
	if result.QualityScore != 0.7 {
		t.Errorf("comment-only feedback should not move the score, got %f", result.QualityScore)
	}
	latest, err := s.GetLatest(ctx, "Romans 8", "augustine")
	if err != nil {
		t.Fatal(err)
	}
	if len(latest.Feedback) != 1 || latest.Feedback[0].Comment != "please expand on verse 28" {
		t.Errorf("comment not stored: %+v", latest.Feedback)
	}
}

func TestStore_GetLatestUnknownKey(t *testing.T) {
	s := newTestStore()
	v, err := s.GetLatest(context.Background(), "Psalm 23", "augustine")
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if v != nil {
		t.Errorf("expected nil for unknown key, got %+v", v)
	}
}

func TestStore_ListVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	if _, err := s.AddVersion(ctx, "Psalm 23", "augustine", "first", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddFeedback(ctx, "Psalm 23", "augustine", intPtr(4), "good"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddVersion(ctx, "Psalm 23", "augustine", "second", []string{"Expanded coverage"}); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.ListVersions(ctx, "Psalm 23", "augustine")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].VersionNumber != 1 || summaries[1].VersionNumber != 2 {
		t.Errorf("versions not ascending: %d, %d", summaries[0].VersionNumber, summaries[1].VersionNumber)
	}
	if summaries[0].FeedbackCount != 1 {
		t.Errorf("v1 feedback count = %d, want 1", summaries[0].FeedbackCount)
	}
	if len(summaries[1].Improvements) != 1 || summaries[1].Improvements[0] != "Expanded coverage" {
		t.Errorf("v2 improvements = %v", summaries[1].Improvements)
	}

	// Unknown key yields an empty list, not an error.
	empty, err := s.ListVersions(ctx, "Jude 1", "augustine")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list, got %d", len(empty))
	}
}
