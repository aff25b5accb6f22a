// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mnemo-dev/mnemo/internal/store"
)

// formatContentCap is the per-entry body limit in FormatContext.
const formatContentCap = 500

// NoContextSentinel is returned by FormatContext for empty results.
const NoContextSentinel = "No relevant context found."

// Result is a single retrieval hit. Score is a similarity in [0, 1]
// derived from the index distance: higher = more similar.
type Result struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// RetrieveContext answers a query with the configured default k and
// score threshold.
func (s *Service) RetrieveContext(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = s.limits.RetrievalK
	}
	return s.Retrieve(ctx, query, k, s.limits.ScoreThreshold)
}

// Retrieve answers a query in two tiers: summaries first, then raw
// documents to fill up to k. Results are threshold-filtered, sorted by
// descending score, and each hit's last-access timestamp is touched.
// Retrieval augments rather than gates functionality, so index
// failures degrade to an empty result instead of propagating.
func (s *Service) Retrieve(ctx context.Context, query string, k int, scoreThreshold float64) ([]Result, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	emb := s.embedder.Embed(ctx, query)

	results := s.queryTier(ctx, emb.Vector, k, store.LevelSummary, scoreThreshold)
	if len(results) < k {
		results = append(results, s.queryTier(ctx, emb.Vector, k-len(results), store.LevelDocument, scoreThreshold)...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// queryTier runs one thresholded tier query and touches access times on
// the kept entries.
func (s *Service) queryTier(ctx context.Context, embedding []float32, k int, level store.Level, scoreThreshold float64) []Result {
	records, err := s.index.Query(ctx, embedding, k, store.Filter{
		store.MetaLevel:    string(level),
		store.MetaObsolete: false,
		store.MetaArchived: false,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "tier query failed, degrading to empty",
			"level", string(level),
			"error", err,
		)
		return nil
	}

	now := s.now()
	var results []Result
	for _, rec := range records {
		score := 1 - rec.Distance
		if score < scoreThreshold {
			continue
		}

		// Access-time updates are best-effort; their loss only affects
		// maintenance eligibility, not retrieval correctness.
		if err := s.index.UpdateMetadata(ctx, rec.ID, map[string]any{
			store.MetaLastAccessAt: store.FormatTime(now),
		}); err != nil {
			s.logger.DebugContext(ctx, "failed to touch access time",
				"document_id", rec.ID,
				"error", err,
			)
		}

		results = append(results, Result{
			ID:       rec.ID,
			Content:  rec.Content,
			Metadata: rec.Metadata,
			Score:    score,
		})
	}
	return results
}

// FormatContext renders results as a human-readable context block: a
// header, then one dated, typed, authored entry per result separated by
// a horizontal rule. Bodies are capped at 500 characters.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return NoContextSentinel
	}

	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for _, r := range results {
		date := "unknown date"
		if t := store.ParseTime(metaString(r.Metadata, store.MetaCreatedAt)); !t.IsZero() {
			date = t.Format("2006-01-02")
		}
		docType := metaString(r.Metadata, store.MetaType)
		if docType == "" {
			docType = "note"
		}
		author := metaString(r.Metadata, store.MetaAuthor)
		if author == "" {
			author = "unknown"
		}

		content := r.Content
		if utf8.RuneCountInString(content) > formatContentCap {
			content = truncateRunes(content, formatContentCap-utf8.RuneCountInString(ellipsis)) + ellipsis
		}

		fmt.Fprintf(&b, "\n[%s] (%s) by %s:\n%s\n---\n", date, docType, author, content)
	}
	return b.String()
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
