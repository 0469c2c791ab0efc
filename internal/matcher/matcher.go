// Package matcher implements FAQ answer matching for inbound questions.
// Two independent strategies are tried in order: a lexical partial-ratio
// string score and a semantic embedding cosine similarity. The first
// confident hit wins, with lexical checked first.
package matcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"qnabot/internal/config"
	"qnabot/internal/database"
	"qnabot/internal/gemini"
)

// Strategy names reported on a match.
const (
	StrategyLexical  = "lexical"
	StrategySemantic = "semantic"
)

// Match is a confident FAQ hit. Confidence is the lexical score scaled to 0-1
// or the semantic cosine similarity, depending on Strategy.
type Match struct {
	Answer     string
	Confidence float64
	Strategy   string
}

// Matcher matches free text against a cached snapshot of the FAQ corpus.
// The snapshot is a read-only projection of the store and is rebuilt via
// Refresh whenever the FAQ set changes; it is never the source of truth.
type Matcher struct {
	store    database.Store
	embedder gemini.Embedder // nil disables the semantic strategy
	logger   *slog.Logger

	lexicalThreshold  int
	semanticThreshold float64

	mu         sync.RWMutex
	entries    []database.FAQEntry
	embeddings [][]float32 // parallel to entries; nil when embedding failed or disabled
}

// New creates a Matcher. A nil embedder is allowed and disables the semantic
// strategy (lexical-only mode). Call Refresh before the first Match.
func New(store database.Store, embedder gemini.Embedder, cfg config.MatcherConfig, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Matcher{
		store:             store,
		embedder:          embedder,
		logger:            logger.With("component", "matcher"),
		lexicalThreshold:  cfg.LexicalThreshold,
		semanticThreshold: cfg.SemanticThreshold,
	}
}

// Refresh rebuilds the FAQ snapshot and its embeddings from the store.
// The rebuild is full, not incremental; FAQ corpora are small. An embedding
// failure is not fatal: the lexical strategy keeps working on the fresh
// entries and embeddings are retried on the next refresh.
func (m *Matcher) Refresh(ctx context.Context) error {
	entries, err := m.store.ListFAQ(ctx)
	if err != nil {
		return fmt.Errorf("failed to load FAQ corpus: %w", err)
	}

	var embeddings [][]float32
	if m.embedder != nil && len(entries) > 0 {
		questions := make([]string, len(entries))
		for i, e := range entries {
			questions[i] = e.Question
		}

		embeddings, err = m.embedder.EmbedBatch(ctx, questions)
		if err != nil {
			m.logger.WarnContext(ctx, "Failed to embed FAQ corpus, semantic matching disabled until next refresh",
				"entries", len(entries), "error", err)
			embeddings = nil
		}
	}

	m.mu.Lock()
	m.entries = entries
	m.embeddings = embeddings
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "FAQ snapshot refreshed",
		"entries", len(entries), "embedded", embeddings != nil)
	return nil
}

// Match returns a confident FAQ answer for the given text, or false when no
// strategy is confident. Dependency failures degrade to no-match and are
// logged, never propagated.
func (m *Matcher) Match(ctx context.Context, text string) (*Match, bool) {
	m.mu.RLock()
	entries := m.entries
	embeddings := m.embeddings
	m.mu.RUnlock()

	if len(entries) == 0 {
		return nil, false
	}

	if hit, ok := m.matchLexical(entries, text); ok {
		m.logger.DebugContext(ctx, "Lexical FAQ match",
			"confidence", hit.Confidence, "text_len", len(text))
		return hit, true
	}

	if hit, ok := m.matchSemantic(ctx, entries, embeddings, text); ok {
		m.logger.DebugContext(ctx, "Semantic FAQ match",
			"confidence", hit.Confidence, "text_len", len(text))
		return hit, true
	}

	return nil, false
}

// matchLexical scores every FAQ question with a case-insensitive partial
// ratio and accepts the best score at or above the threshold (0-100 scale).
// O(F) over the corpus; fine at FAQ scale.
func (m *Matcher) matchLexical(entries []database.FAQEntry, text string) (*Match, bool) {
	lowered := strings.ToLower(text)

	bestScore := -1
	bestIdx := -1
	for i, e := range entries {
		score := fuzzy.PartialRatio(strings.ToLower(e.Question), lowered)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < m.lexicalThreshold {
		return nil, false
	}

	return &Match{
		Answer:     entries[bestIdx].Answer,
		Confidence: float64(bestScore) / 100,
		Strategy:   StrategyLexical,
	}, true
}

// matchSemantic embeds the query and accepts the arg-max cosine similarity
// against the cached FAQ embeddings when it reaches the threshold.
func (m *Matcher) matchSemantic(ctx context.Context, entries []database.FAQEntry, embeddings [][]float32, text string) (*Match, bool) {
	if m.embedder == nil || len(embeddings) != len(entries) {
		return nil, false
	}

	query, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to embed query, skipping semantic match", "error", err)
		return nil, false
	}

	bestScore := math.Inf(-1)
	bestIdx := -1
	for i, emb := range embeddings {
		score := cosineSimilarity(query, emb)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < m.semanticThreshold {
		return nil, false
	}

	return &Match{
		Answer:     entries[bestIdx].Answer,
		Confidence: bestScore,
		Strategy:   StrategySemantic,
	}, true
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns -1 for mismatched or zero-magnitude vectors so they never match.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
