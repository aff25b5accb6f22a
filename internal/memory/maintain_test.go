// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/memory"
	"github.com/mnemo-dev/mnemo/internal/store"
)

// newSizedService wires a Service whose storage path holds a file of
// the given size, so the on-disk thresholds are exercised for real.
func newSizedService(t *testing.T, idx *mockIndex, clock *testClock, limits memory.Limits, sizeBytes int) *memory.Service {
	t.Helper()
	dir := t.TempDir()
	if sizeBytes > 0 {
		err := os.WriteFile(filepath.Join(dir, "memory.db"), make([]byte, sizeBytes), 0o600)
		require.NoError(t, err)
	}
	return memory.NewService(memory.ServiceConfig{
		Index:       idx,
		Embedder:    embed.NewChain(nil, 16, nil),
		StoragePath: dir,
		Limits:      limits,
		Clock:       clock.Now,
	})
}

func TestCheckAndMaintain_RollsUpPastDocumentCeiling(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, idx, clock, memory.Limits{
		MaxDocuments:        3,
		MaxSizeMB:           5,
		CompactionMaxSizeMB: 1024,
		StalenessDays:       30,
		RetrievalK:          5,
		ScoreThreshold:      0.25,
	})
	ctx := context.Background()

	// The fourth save pushes the count past the ceiling; the post-save
	// maintenance check rolls the week's group up synchronously.
	saveN(t, svc, "log", "entry a", "entry b", "entry c", "entry d")

	summaries, err := idx.List(ctx, store.Filter{store.MetaLevel: string(store.LevelSummary)}, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestCheckAndMaintain_NoopBelowThresholds(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, idx, clock, memory.Limits{})
	ctx := context.Background()

	saveN(t, svc, "log", "entry a", "entry b", "entry c")

	require.NoError(t, svc.CheckAndMaintain(ctx))

	summaries, err := idx.List(ctx, store.Filter{store.MetaLevel: string(store.LevelSummary)}, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries, "maintenance below both ceilings must not roll up")
}

func TestCompactStale_NoopBelowCeiling(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newSizedService(t, idx, clock, memory.DefaultLimits(), 1024)

	stats, err := svc.CompactStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.Archived)
	assert.Zero(t, idx.compacted, "index must not be rebuilt on a no-op run")
}

func TestCompactStale_ArchivesLeastRecentlyUsedHalf(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	limits := memory.DefaultLimits()
	limits.CompactionMaxSizeMB = 1.0 / 1024 // 1 KB ceiling
	svc := newSizedService(t, idx, clock, limits, 64*1024)
	ctx := context.Background()

	longBody := strings.Repeat("An old document body that goes on at some length. ", 40)
	oldID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: longBody, Type: "note"})
	require.NoError(t, err)

	clock.Set(clock.Now().Add(time.Hour))
	newerID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: "a newer document", Type: "note"})
	require.NoError(t, err)

	// Both documents fall outside the staleness window; only the older
	// half of the stale set is compacted.
	clock.Set(clock.Now().AddDate(0, 0, 60))

	stats, err := svc.CompactStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Archived)
	assert.Equal(t, 1, idx.compacted, "index is rebuilt exactly once per run")
	assert.Greater(t, stats.SizeBeforeMB, limits.CompactionMaxSizeMB)

	compacted, err := idx.Get(ctx, oldID)
	require.NoError(t, err)
	assert.Equal(t, true, compacted.Metadata[store.MetaArchived])
	assert.Equal(t, len(longBody), compacted.Metadata[store.MetaOriginalLength])
	assert.Less(t, len(compacted.Content), len(longBody), "content is replaced with a short summary")

	untouched, err := idx.Get(ctx, newerID)
	require.NoError(t, err)
	assert.Equal(t, false, untouched.Metadata[store.MetaArchived])
	assert.Equal(t, "a newer document", untouched.Content)
}

func TestCompactStale_FreshDocumentsIneligible(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	limits := memory.DefaultLimits()
	limits.CompactionMaxSizeMB = 1.0 / 1024
	svc := newSizedService(t, idx, clock, limits, 64*1024)
	ctx := context.Background()

	saveN(t, svc, "note", "freshly accessed a", "freshly accessed b")

	stats, err := svc.CompactStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed, "documents inside the staleness window stay untouched")
	assert.Equal(t, 1, idx.compacted)
}
