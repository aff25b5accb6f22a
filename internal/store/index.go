// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import "context"

// Record is a single keyed entry in the vector index: an embedding plus
// the document content and its metadata map.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]any
	// Distance is populated by Query results only. Lower = more
	// similar; 0.0 = exact match.
	Distance float64
}

// Filter is an equality predicate over metadata keys. All entries must
// match. An empty or nil filter matches every record.
type Filter map[string]any

// VectorIndex is the persistent keyed store the memory subsystem is
// built on: upsert, get-by-id, metadata update, nearest-neighbor query
// filtered by metadata predicate, and a full-scan list for maintenance.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, embedding []float32, content string, metadata map[string]any) error
	Get(ctx context.Context, id string) (*Record, error)
	// UpdateMetadata merges patch into the record's existing metadata.
	UpdateMetadata(ctx context.Context, id string, patch map[string]any) error
	Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Record, error)
	// List returns records matching filter without a similarity query.
	// limit <= 0 means no limit.
	List(ctx context.Context, filter Filter, limit int) ([]Record, error)
	Count(ctx context.Context) (int64, error)
	// Compact rebuilds the underlying storage, reclaiming space freed
	// by maintenance. Invoked once per compaction run, not per record.
	Compact(ctx context.Context) error
	Close() error
}
