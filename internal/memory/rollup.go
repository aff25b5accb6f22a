// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

const (
	// rollupMinGroupSize is the smallest group worth compressing.
	// Fewer documents carry too little signal for a useful summary.
	rollupMinGroupSize = 3
	// rollupSourceChars caps how much of each member feeds the summary.
	rollupSourceChars = 1000
	// rollupSummaryTokens is the rollup summary budget.
	rollupSummaryTokens = 256
)

// rollupAuthor marks summaries as machine-generated.
const rollupAuthor = "summarizer"

// groupKey buckets documents for rollup by calendar week and type.
type groupKey struct {
	Week string
	Type string
}

// weekKey formats the ISO year-week bucket for a timestamp. A pure
// function of created_at, so grouping is testable without a clock.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// RollUpSummaries groups eligible documents by (ISO week, type) and
// folds each group of three or more into a single summary document,
// archiving the sources. Returns the number of summaries created;
// callers use the count for observability, not control flow.
func (s *Service) RollUpSummaries(ctx context.Context) (int, error) {
	records, err := s.index.List(ctx, store.Filter{
		store.MetaLevel:    string(store.LevelDocument),
		store.MetaObsolete: false,
		store.MetaArchived: false,
	}, 0)
	if err != nil {
		return 0, mnemoerr.Wrap(err, mnemoerr.CodeIndexQueryFailure, "listing rollup candidates")
	}

	groups := make(map[groupKey][]*store.Document)
	for i := range records {
		doc := store.DocumentFromRecord(&records[i])
		key := groupKey{Week: weekKey(doc.CreatedAt), Type: doc.Type}
		groups[key] = append(groups[key], doc)
	}

	// Stable iteration so repeated runs behave identically.
	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Week != keys[j].Week {
			return keys[i].Week < keys[j].Week
		}
		return keys[i].Type < keys[j].Type
	})

	created := 0
	for _, key := range keys {
		group := groups[key]
		if len(group) < rollupMinGroupSize {
			continue
		}

		// A failed group is skipped, never aborts the whole run.
		if err := s.rollUpGroup(ctx, key, group); err != nil {
			s.logger.WarnContext(ctx, "skipping malformed rollup group",
				"week", key.Week,
				"type", key.Type,
				"size", len(group),
				"error", err,
			)
			continue
		}
		created++
	}

	return created, nil
}

// rollUpGroup persists one summary document and archives its sources.
// Summary creation and source archival are one logical unit: sources
// are archived immediately after the summary lands.
func (s *Service) rollUpGroup(ctx context.Context, key groupKey, group []*store.Document) error {
	sourceIDs := make([]string, 0, len(group))
	combined := ""
	for _, doc := range group {
		sourceIDs = append(sourceIDs, doc.ID)
		part := truncateRunes(doc.Content, rollupSourceChars)
		if combined != "" {
			combined += "\n\n"
		}
		combined += part
	}

	summaryText := Summarize(combined, rollupSummaryTokens)
	now := s.now()

	summaryDoc := &store.Document{
		ID:           uuid.NewString(),
		Content:      summaryText,
		Author:       rollupAuthor,
		Type:         key.Type,
		Level:        store.LevelSummary,
		CreatedAt:    now,
		LastAccessAt: now,
		Extra: map[string]any{
			store.MetaSourceDocumentIDs: sourceIDs,
			store.MetaWeek:              key.Week,
		},
	}

	res := s.embedder.Embed(ctx, summaryText)
	if err := s.index.Upsert(ctx, summaryDoc.ID, res.Vector, summaryDoc.Content, summaryDoc.Metadata()); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeMemoryGroupMalformed, "persisting rollup summary",
			mnemoerr.FieldDocumentID(summaryDoc.ID))
	}

	for _, id := range sourceIDs {
		if err := s.index.UpdateMetadata(ctx, id, map[string]any{store.MetaArchived: true}); err != nil {
			// The summary is already persisted; log the straggler and
			// keep archiving the rest.
			s.logger.WarnContext(ctx, "failed to archive rollup source",
				"document_id", id,
				"summary_id", summaryDoc.ID,
				"error", err,
			)
		}
	}

	return nil
}
