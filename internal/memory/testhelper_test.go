// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package memory_test

import (
	"context"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/memory"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// mockIndex is an in-memory implementation of store.VectorIndex for
// testing. Query ranks by cosine distance unless a per-record distance
// override is set.
type mockIndex struct {
	mu      sync.RWMutex
	records map[string]*store.Record
	// distances overrides the computed query distance per record ID.
	distances map[string]float64
	compacted int
}

var _ store.VectorIndex = (*mockIndex)(nil)

func newMockIndex() *mockIndex {
	return &mockIndex{
		records:   make(map[string]*store.Record),
		distances: make(map[string]float64),
	}
}

func (m *mockIndex) Upsert(_ context.Context, id string, embedding []float32, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	m.records[id] = &store.Record{
		ID:        id,
		Content:   content,
		Embedding: append([]float32(nil), embedding...),
		Metadata:  meta,
	}
	return nil
}

func (m *mockIndex) Get(_ context.Context, id string) (*store.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, mnemoerr.New(mnemoerr.CodeIndexRecordNotFound, "record not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockIndex) UpdateMetadata(_ context.Context, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return mnemoerr.New(mnemoerr.CodeIndexRecordNotFound, "record not found")
	}
	for k, v := range patch {
		r.Metadata[k] = v
	}
	return nil
}

func (m *mockIndex) Query(_ context.Context, embedding []float32, k int, filter store.Filter) ([]store.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.Record
	for _, r := range m.records {
		if !matches(r.Metadata, filter) {
			continue
		}
		cp := *r
		if d, ok := m.distances[r.ID]; ok {
			cp.Distance = d
		} else {
			cp.Distance = cosineDistance(embedding, r.Embedding)
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *mockIndex) List(_ context.Context, filter store.Filter, limit int) ([]store.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []store.Record
	for _, id := range ids {
		r := m.records[id]
		if !matches(r.Metadata, filter) {
			continue
		}
		out = append(out, *r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockIndex) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

func (m *mockIndex) Compact(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compacted++
	return nil
}

func (m *mockIndex) Close() error { return nil }

func matches(metadata map[string]any, filter store.Filter) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(metadata[k], want) {
			return false
		}
	}
	return true
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// testClock is a mutable fixed clock for deterministic time-bucketing.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// newTestService wires a Service over a mock index, the deterministic
// fallback embedder, and a fixed clock. Callers can override limits.
func newTestService(t *testing.T, idx *mockIndex, clock *testClock, limits memory.Limits) *memory.Service {
	t.Helper()
	if limits == (memory.Limits{}) {
		limits = memory.DefaultLimits()
	}
	return memory.NewService(memory.ServiceConfig{
		Index:    idx,
		Embedder: embed.NewChain(nil, 16, nil),
		Limits:   limits,
		Clock:    clock.Now,
		Logger:   slog.Default(),
	})
}
