// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/memory"
	"github.com/mnemo-dev/mnemo/internal/store"
)

func TestRetrieve_BlankQuery(t *testing.T) {
	svc := newTestService(t, newMockIndex(), newTestClock(time.Now()), memory.Limits{})

	results, err := svc.Retrieve(context.Background(), "   ", 5, 0.25)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Retrieve(context.Background(), "query", 0, 0.25)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_ExactMatchScoresOne(t *testing.T) {
	idx := newMockIndex()
	svc := newTestService(t, idx, newTestClock(time.Now()), memory.Limits{})
	ctx := context.Background()

	content := "The ingestion worker batches writes every five seconds."
	id, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: content, Type: "note"})
	require.NoError(t, err)

	// The fallback embedder is a pure function of the text, so querying
	// with the stored content is an exact vector match.
	results, err := svc.Retrieve(ctx, content, 5, 0.25)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestRetrieve_ThresholdFiltersLowScores(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Now())
	svc := newTestService(t, idx, clock, memory.Limits{})
	ctx := context.Background()

	nearID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: "close match", Type: "note"})
	require.NoError(t, err)
	farID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: "distant match", Type: "note"})
	require.NoError(t, err)

	idx.distances[nearID] = 0.2 // score 0.8
	idx.distances[farID] = 0.9  // score 0.1

	results, err := svc.Retrieve(ctx, "anything", 5, 0.25)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, nearID, results[0].ID)
	assert.InDelta(t, 0.8, results[0].Score, 1e-6)
}

func TestRetrieve_SummariesBeforeDocuments(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, idx, clock, memory.Limits{})
	ctx := context.Background()

	// Three documents rolled into a summary, plus one fresh document.
	saveN(t, svc, "log", "entry a", "entry b", "entry c")
	_, err := svc.RollUpSummaries(ctx)
	require.NoError(t, err)
	docID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: "a fresh unrolled document", Type: "log"})
	require.NoError(t, err)

	summaries, err := idx.List(ctx, store.Filter{store.MetaLevel: string(store.LevelSummary)}, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	summaryID := summaries[0].ID

	// The document scores higher than the summary; both pass the
	// threshold and both tiers contribute.
	idx.distances[summaryID] = 0.5
	idx.distances[docID] = 0.1

	results, err := svc.Retrieve(ctx, "anything", 5, 0.25)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, docID, results[0].ID, "results are ordered by score, not tier")
	assert.Equal(t, summaryID, results[1].ID)
}

func TestRetrieve_ArchivedExcluded(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, idx, clock, memory.Limits{})
	ctx := context.Background()

	ids := saveN(t, svc, "log", "entry a", "entry b", "entry c")
	_, err := svc.RollUpSummaries(ctx)
	require.NoError(t, err)

	for _, id := range ids {
		idx.distances[id] = 0
	}

	results, err := svc.Retrieve(ctx, "anything", 10, 0.25)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, ids, r.ID, "archived rollup sources must not be retrievable")
	}
}

func TestRetrieve_ObsoleteVersionsExcluded(t *testing.T) {
	idx := newMockIndex()
	svc := newTestService(t, idx, newTestClock(time.Now()), memory.Limits{})
	ctx := context.Background()

	oldID, err := svc.SaveDocument(ctx, memory.SaveRequest{
		Content: "doc A", Type: "code", VersionID: "v1",
	})
	require.NoError(t, err)
	newID, err := svc.SaveDocument(ctx, memory.SaveRequest{
		Content: "doc B", Type: "code", VersionID: "v1",
	})
	require.NoError(t, err)

	idx.distances[oldID] = 0
	idx.distances[newID] = 0

	results, err := svc.Retrieve(ctx, "doc B", 10, 0.25)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, oldID, r.ID, "superseded versions must never be retrieved")
	}
}

func TestRetrieve_TouchesAccessTime(t *testing.T) {
	idx := newMockIndex()
	clock := newTestClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, idx, clock, memory.Limits{})
	ctx := context.Background()

	content := "document whose access time should move"
	id, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: content, Type: "note"})
	require.NoError(t, err)

	later := clock.Now().Add(48 * time.Hour)
	clock.Set(later)

	_, err = svc.Retrieve(ctx, content, 5, 0.25)
	require.NoError(t, err)

	rec, err := idx.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.FormatTime(later), rec.Metadata[store.MetaLastAccessAt])
}

func TestRetrieveContext_UsesConfiguredDefaults(t *testing.T) {
	idx := newMockIndex()
	svc := newTestService(t, idx, newTestClock(time.Now()), memory.Limits{
		MaxDocuments:        1000,
		MaxSizeMB:           5,
		CompactionMaxSizeMB: 1024,
		StalenessDays:       30,
		RetrievalK:          1,
		ScoreThreshold:      0.25,
	})
	ctx := context.Background()

	aID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: "alpha", Type: "note"})
	require.NoError(t, err)
	bID, err := svc.SaveDocument(ctx, memory.SaveRequest{Content: "beta", Type: "note"})
	require.NoError(t, err)

	idx.distances[aID] = 0.1
	idx.distances[bID] = 0.2

	results, err := svc.RetrieveContext(ctx, "anything", 0)
	require.NoError(t, err)
	require.Len(t, results, 1, "k defaults to the configured value")
	assert.Equal(t, aID, results[0].ID)
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Equal(t, memory.NoContextSentinel, memory.FormatContext(nil))
	assert.Equal(t, "No relevant context found.", memory.FormatContext([]memory.Result{}))
}

func TestFormatContext_Entries(t *testing.T) {
	out := memory.FormatContext([]memory.Result{
		{
			ID:      "doc-1",
			Content: "Body of the first hit.",
			Score:   0.9,
			Metadata: map[string]any{
				store.MetaCreatedAt: "2026-03-10T09:00:00Z",
				store.MetaType:      "changelog",
				store.MetaAuthor:    "alice",
			},
		},
	})

	assert.True(t, strings.HasPrefix(out, "Relevant context:\n"))
	assert.Contains(t, out, "[2026-03-10] (changelog) by alice:")
	assert.Contains(t, out, "Body of the first hit.")
	assert.Contains(t, out, "\n---\n")
}

func TestFormatContext_MissingMetadataDefaults(t *testing.T) {
	out := memory.FormatContext([]memory.Result{{ID: "doc-1", Content: "body"}})
	assert.Contains(t, out, "[unknown date] (note) by unknown:")
}

func TestFormatContext_CapsLongBodies(t *testing.T) {
	long := strings.Repeat("x", 2000)
	out := memory.FormatContext([]memory.Result{{ID: "doc-1", Content: long}})

	start := strings.LastIndex(out, ":\n") + 2
	end := strings.Index(out, "\n---")
	body := out[start:end]
	assert.Len(t, body, 500)
	assert.True(t, strings.HasSuffix(body, "..."))
}

func TestFormatContext_CapsMultibyteBodiesOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 600)
	out := memory.FormatContext([]memory.Result{{ID: "doc-1", Content: long}})

	require.True(t, utf8.ValidString(out), "truncation must not split a rune")

	start := strings.LastIndex(out, ":\n") + 2
	end := strings.Index(out, "\n---")
	body := out[start:end]
	assert.Equal(t, 500, utf8.RuneCountInString(body), "the body cap counts characters, not bytes")
	assert.True(t, strings.HasSuffix(body, "..."))
}
