// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// compactedSummaryTokens is the resummarization budget applied to stale
// documents during compaction.
const compactedSummaryTokens = 64

// CheckAndMaintain runs after every save: when the document count or
// the store's on-disk size exceeds its ceiling, the hierarchical
// summarizer runs synchronously.
func (s *Service) CheckAndMaintain(ctx context.Context) error {
	count, err := s.index.Count(ctx)
	if err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeIndexQueryFailure, "counting documents for maintenance")
	}
	sizeMB := s.storeSizeMB()

	if count <= int64(s.limits.MaxDocuments) && sizeMB <= s.limits.MaxSizeMB {
		return nil
	}

	created, err := s.RollUpSummaries(ctx)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "maintenance rollup complete",
		"document_count", count,
		"size_mb", sizeMB,
		"summaries_created", created,
	)
	return nil
}

// CompactionStats reports what a CompactStale run did.
type CompactionStats struct {
	Processed    int
	Archived     int
	SizeBeforeMB float64
	SizeAfterMB  float64
}

// CompactStale is the scheduled compaction pass: when the store exceeds
// its size ceiling, the least-recently-used half of documents not
// accessed within the staleness window get their content replaced with
// a short extractive summary and are archived. The index is rebuilt
// once per run, after the batch.
func (s *Service) CompactStale(ctx context.Context) (CompactionStats, error) {
	stats := CompactionStats{SizeBeforeMB: s.storeSizeMB()}
	stats.SizeAfterMB = stats.SizeBeforeMB

	if stats.SizeBeforeMB <= s.limits.CompactionMaxSizeMB {
		return stats, nil
	}

	records, err := s.index.List(ctx, store.Filter{
		store.MetaLevel:    string(store.LevelDocument),
		store.MetaObsolete: false,
		store.MetaArchived: false,
	}, 0)
	if err != nil {
		return stats, mnemoerr.Wrap(err, mnemoerr.CodeIndexQueryFailure, "listing compaction candidates")
	}

	cutoff := s.now().AddDate(0, 0, -s.limits.StalenessDays)
	var stale []*store.Document
	for i := range records {
		doc := store.DocumentFromRecord(&records[i])
		if doc.LastAccessAt.Before(cutoff) {
			stale = append(stale, doc)
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].LastAccessAt.Before(stale[j].LastAccessAt)
	})
	stale = stale[:len(stale)/2]

	for _, doc := range stale {
		stats.Processed++
		if err := s.compactDocument(ctx, doc); err != nil {
			s.logger.WarnContext(ctx, "failed to compact document",
				"document_id", doc.ID,
				"error", err,
			)
			continue
		}
		stats.Archived++
	}

	if err := s.index.Compact(ctx); err != nil {
		return stats, mnemoerr.Wrap(err, mnemoerr.CodeIndexCompactFailure, "rebuilding index after compaction")
	}

	stats.SizeAfterMB = s.storeSizeMB()
	s.logger.InfoContext(ctx, "compaction complete",
		"processed", stats.Processed,
		"archived", stats.Archived,
		"size_before_mb", stats.SizeBeforeMB,
		"size_after_mb", stats.SizeAfterMB,
	)
	return stats, nil
}

// compactDocument replaces a document's content with a short summary,
// records the original length, and archives it. The embedding is kept
// so the record stays addressable by similarity if ever unarchived for
// an audit rebuild.
func (s *Service) compactDocument(ctx context.Context, doc *store.Document) error {
	rec, err := s.index.Get(ctx, doc.ID)
	if err != nil {
		return err
	}

	compacted := *doc
	compacted.Content = Summarize(rec.Content, compactedSummaryTokens)
	compacted.Archived = true
	if compacted.Extra == nil {
		compacted.Extra = make(map[string]any, 1)
	}
	compacted.Extra[store.MetaOriginalLength] = len(rec.Content)

	return s.index.Upsert(ctx, doc.ID, rec.Embedding, compacted.Content, compacted.Metadata())
}

// storeSizeMB walks the persistence root summing file sizes. A missing
// root counts as zero.
func (s *Service) storeSizeMB() float64 {
	if s.storagePath == "" {
		return 0
	}

	var total int64
	_ = filepath.WalkDir(s.storagePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})

	return float64(total) / (1024 * 1024)
}
