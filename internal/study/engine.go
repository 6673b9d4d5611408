// Package study orchestrates retrieval, persona prompting, generation, and
// the commentary version history.
package study

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/psalterlabs/lectio/internal/commentary"
	"github.com/psalterlabs/lectio/internal/extract"
	"github.com/psalterlabs/lectio/internal/llm"
	"github.com/psalterlabs/lectio/internal/metrics"
	"github.com/psalterlabs/lectio/internal/models"
	"github.com/psalterlabs/lectio/internal/persona"
	"github.com/psalterlabs/lectio/internal/retrieval"
	"github.com/psalterlabs/lectio/pkg/utils"
	"go.uber.org/zap"
)

// contextExcerptLen bounds each retrieved excerpt quoted into a prompt.
const contextExcerptLen = 300

// previousExcerptLen bounds the previous-version excerpt quoted when
// regenerating.
const previousExcerptLen = 500

// Engine composes the retrieval index, the commentary store, and the text
// generator. It owns prompt construction; the components it composes never
// call each other directly.
type Engine struct {
	index     *retrieval.Index
	store     *commentary.Store
	generator llm.Generator
	extractor *extract.Extractor
	topK      int
	logger    *zap.Logger // optional; when set, logs debug events
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. extractor may be nil; IngestDirectory then
// reads all files as plain text.
func NewEngine(index *retrieval.Index, store *commentary.Store, generator llm.Generator, extractor *extract.Extractor, topK int, opts ...EngineOption) *Engine {
	e := &Engine{
		index:     index,
		store:     store,
		generator: generator,
		extractor: extractor,
		topK:      topK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index returns the underlying retrieval index.
func (e *Engine) Index() *retrieval.Index { return e.index }

// Store returns the underlying commentary store.
func (e *Engine) Store() *commentary.Store { return e.store }

// GenerateCommentary retrieves context for the passage from the persona's
// sources, generates commentary in the persona's voice, and records it as
// the next version for (passageKey, persona).
func (e *Engine) GenerateCommentary(ctx context.Context, passageKey string, p persona.Persona) (*models.CommentaryVersion, error) {
	started := time.Now()
	tmpl := persona.TemplateFor(p)

	excerpts, err := e.retrieveContext(ctx, tmpl, passageKey)
	if err != nil {
		return nil, err
	}
	prompt := buildCommentaryPrompt(passageKey, excerpts, nil, nil)

	content, err := e.generator.Generate(ctx, tmpl.Model, tmpl.SystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	v, err := e.store.AddVersion(ctx, passageKey, p.String(), content, nil)
	if err != nil {
		return nil, err
	}
	metrics.RecordGeneration(p.String(), "explicit", time.Since(started))
	if e.logger != nil {
		e.logger.Debug("commentary generated",
			zap.String("passage_key", passageKey),
			zap.String("persona", p.String()),
			zap.Int("version", v.VersionNumber),
		)
	}
	return v, nil
}

// SubmitFeedback records feedback on the latest version for the key. When
// the quality score crosses the regeneration threshold, a new version is
// generated immediately with improvement hints drawn from recent feedback
// comments; a generation failure is logged but does not fail the feedback,
// which is already persisted.
func (e *Engine) SubmitFeedback(ctx context.Context, passageKey string, p persona.Persona, rating *int, comment string) (*models.FeedbackResult, *models.CommentaryVersion, error) {
	result, err := e.store.AddFeedback(ctx, passageKey, p.String(), rating, comment)
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordFeedback()
	if !result.NewVersionGenerated {
		return result, nil, nil
	}

	newVersion, err := e.regenerate(ctx, passageKey, p)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("feedback-triggered regeneration failed",
				zap.String("passage_key", passageKey),
				zap.String("persona", p.String()),
				zap.Error(err),
			)
		}
		return result, nil, nil
	}
	return result, newVersion, nil
}

// regenerate produces the next version, feeding the previous content and its
// feedback comments back into the prompt.
func (e *Engine) regenerate(ctx context.Context, passageKey string, p persona.Persona) (*models.CommentaryVersion, error) {
	started := time.Now()
	previous, err := e.store.GetLatest(ctx, passageKey, p.String())
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, fmt.Errorf("%w: nothing to regenerate for %q/%q", models.ErrNotFound, passageKey, p)
	}

	tmpl := persona.TemplateFor(p)
	excerpts, err := e.retrieveContext(ctx, tmpl, passageKey)
	if err != nil {
		return nil, err
	}
	hints := recentComments(previous.Feedback, 3)
	prompt := buildCommentaryPrompt(passageKey, excerpts, previous, hints)

	content, err := e.generator.Generate(ctx, tmpl.Model, tmpl.SystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	improvements := identifyImprovements(content, previous)
	v, err := e.store.AddVersion(ctx, passageKey, p.String(), content, improvements)
	if err != nil {
		return nil, err
	}
	metrics.RecordGeneration(p.String(), "feedback", time.Since(started))
	return v, nil
}

// Answer generates a direct answer to a free-form question in the persona's
// voice, using retrieved context. Nothing is persisted.
func (e *Engine) Answer(ctx context.Context, question string, p persona.Persona) (string, error) {
	tmpl := persona.TemplateFor(p)
	excerpts, err := e.retrieveContext(ctx, tmpl, question)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A seeker asks: %q\n", question)
	writeContextSection(&b, excerpts)
	b.WriteString("\nPlease provide a thoughtful, spiritually nourishing answer drawing from your wisdom and experience.")
	return e.generator.Generate(ctx, tmpl.Model, tmpl.SystemPrompt, b.String())
}

// IngestText ingests raw text for a source.
func (e *Engine) IngestText(ctx context.Context, sourceID, text string) error {
	if err := e.index.Ingest(ctx, sourceID, text); err != nil {
		return err
	}
	metrics.RecordIngest()
	return nil
}

// IngestDirectory extracts every supported file under dir (sorted, so the
// concatenation order is stable), joins the texts, and ingests them as a
// single source. Returns the number of files read.
func (e *Engine) IngestDirectory(ctx context.Context, sourceID, dir string, allowedExts []string) (int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		if !extract.Supported(ext) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var texts []string
	for _, path := range paths {
		text, err := e.extractText(path)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("extraction failed, skipping file",
					zap.String("path", path), zap.Error(err))
			}
			continue
		}
		if strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return 0, fmt.Errorf("%w: no extractable text under %s", models.ErrIngest, dir)
	}
	if err := e.IngestText(ctx, sourceID, strings.Join(texts, "\n\n")); err != nil {
		return 0, err
	}
	return len(texts), nil
}

func (e *Engine) extractText(path string) (string, error) {
	if e.extractor != nil {
		return e.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (e *Engine) retrieveContext(ctx context.Context, tmpl persona.Template, query string) ([]string, error) {
	results, err := e.index.QueryMulti(ctx, tmpl.RetrievalSources, query, e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	metrics.RecordQuery()
	var excerpts []string
	for _, sourceID := range tmpl.RetrievalSources {
		for _, hit := range results[sourceID] {
			excerpts = append(excerpts, utils.Truncate(hit.Chunk.Text, contextExcerptLen))
		}
	}
	return excerpts, nil
}

func buildCommentaryPrompt(passageKey string, excerpts []string, previous *models.CommentaryVersion, hints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please provide commentary on this Bible passage:\n\n%s\n", passageKey)
	writeContextSection(&b, excerpts)
	if previous != nil {
		fmt.Fprintf(&b, "\nPrevious version (v%d):\n%s\n",
			previous.VersionNumber, utils.Truncate(previous.Content, previousExcerptLen))
	}
	if len(hints) > 0 {
		b.WriteString("\nUser feedback to address:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	b.WriteString("\nPlease offer spiritual insights, explain the meaning in context, and provide guidance for personal reflection.")
	if previous != nil {
		b.WriteString(" This is an improved version: address the previous feedback and make enhancements.")
	}
	return b.String()
}

func writeContextSection(b *strings.Builder, excerpts []string) {
	if len(excerpts) == 0 {
		return
	}
	b.WriteString("\nRelevant teachings for reference:\n")
	for _, ex := range excerpts {
		fmt.Fprintf(b, "- %s\n", ex)
	}
}

// recentComments returns up to n most recent non-empty feedback comments.
func recentComments(feedback []models.FeedbackEntry, n int) []string {
	var comments []string
	for i := len(feedback) - 1; i >= 0 && len(comments) < n; i-- {
		if c := strings.TrimSpace(feedback[i].Comment); c != "" {
			comments = append(comments, c)
		}
	}
	return comments
}

// identifyImprovements describes what changed versus the previous version.
func identifyImprovements(content string, previous *models.CommentaryVersion) []string {
	var improvements []string
	if previous == nil {
		return improvements
	}
	if float64(len(content)) > float64(len(previous.Content))*1.2 {
		improvements = append(improvements, "Expanded coverage")
	}
	if len(previous.Feedback) > 0 {
		improvements = append(improvements, "Addressed user feedback")
	}
	return improvements
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
