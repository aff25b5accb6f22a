// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package memory is the hierarchical context-memory subsystem: a
// document store over a vector index that versions, summarizes, and
// retrieves free-text knowledge for a long-running assistant.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// bookkeepingSummaryTokens is the budget for the per-document summary
// stored in metadata for the summarizer's use.
const bookkeepingSummaryTokens = 128

// Limits are the tunable maintenance and retrieval knobs.
type Limits struct {
	// MaxDocuments triggers rollup when the index grows past it.
	MaxDocuments int
	// MaxSizeMB triggers rollup when the store's on-disk size grows past it.
	MaxSizeMB float64
	// CompactionMaxSizeMB is the ceiling below which CompactStale no-ops.
	CompactionMaxSizeMB float64
	// StalenessDays is the access-age window for compaction eligibility.
	StalenessDays int
	// RetrievalK is the default result count for RetrieveContext.
	RetrievalK int
	// ScoreThreshold is the default minimum similarity score.
	ScoreThreshold float64
}

// DefaultLimits returns the stock knob values.
func DefaultLimits() Limits {
	return Limits{
		MaxDocuments:        1000,
		MaxSizeMB:           5,
		CompactionMaxSizeMB: 1024,
		StalenessDays:       30,
		RetrievalK:          5,
		ScoreThreshold:      0.25,
	}
}

// ServiceConfig holds the dependencies and tuning for a Service.
type ServiceConfig struct {
	Index    store.VectorIndex
	Embedder *embed.Chain
	// StoragePath is the index persistence root; its on-disk size
	// drives the maintenance thresholds.
	StoragePath string
	Limits      Limits
	// Clock is injected so time-bucket grouping and staleness stay
	// testable. Defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Service is the caller-facing boundary of the memory subsystem. All
// operations run synchronously to completion; there is no background
// scheduler.
type Service struct {
	index       store.VectorIndex
	embedder    *embed.Chain
	storagePath string
	limits      Limits
	now         func() time.Time
	logger      *slog.Logger

	// Writers to the same (type, version_id) race on supersession, so
	// they are serialized per key.
	versionMu    sync.Mutex
	versionLocks map[string]*sync.Mutex
}

// NewService creates a Service with the given configuration.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limits := cfg.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Service{
		index:        cfg.Index,
		embedder:     cfg.Embedder,
		storagePath:  cfg.StoragePath,
		limits:       limits,
		now:          cfg.Clock,
		logger:       cfg.Logger,
		versionLocks: make(map[string]*sync.Mutex),
	}
}

// SaveRequest describes a document to ingest.
type SaveRequest struct {
	Content string
	Author  string
	// Type is a free-form classification tag, e.g. "code",
	// "changelog", "error", "conversation", "dataset_profile".
	Type string
	// VersionID, when set, makes this document supersede the prior
	// non-obsolete document with the same (Type, VersionID).
	VersionID string
	// Level defaults to LevelDocument.
	Level store.Level
	Extra map[string]any
}

// SaveDocument ingests a document: supersedes a prior version if a
// version key is set, persists the new document, then runs the
// maintenance check. Embedding failures degrade to the deterministic
// fallback; index write failures surface, since dropping a write would
// corrupt the lifecycle invariants.
func (s *Service) SaveDocument(ctx context.Context, req SaveRequest) (string, error) {
	if req.Content == "" {
		return "", mnemoerr.New(mnemoerr.CodeMemorySaveInvalidInput, "save: empty content")
	}
	if req.Level == "" {
		req.Level = store.LevelDocument
	}

	now := s.now()
	doc := &store.Document{
		ID:           uuid.NewString(),
		Content:      req.Content,
		Author:       req.Author,
		Type:         req.Type,
		VersionID:    req.VersionID,
		Level:        req.Level,
		CreatedAt:    now,
		LastAccessAt: now,
		Extra:        req.Extra,
	}

	meta := doc.Metadata()
	meta[store.MetaSummary] = Summarize(req.Content, bookkeepingSummaryTokens)

	res := s.embedder.Embed(ctx, req.Content)
	if res.Source == embed.SourceFallback {
		s.logger.DebugContext(ctx, "document embedded via fallback", "document_id", doc.ID)
	}

	if req.VersionID != "" && req.Level == store.LevelDocument {
		unlock := s.lockVersionKey(req.Type + "/" + req.VersionID)
		defer unlock()

		if err := s.supersede(ctx, doc); err != nil {
			return "", err
		}
	}

	if err := s.index.Upsert(ctx, doc.ID, res.Vector, doc.Content, meta); err != nil {
		return "", mnemoerr.Wrap(err, mnemoerr.CodeIndexUpsertFailure, "persisting document",
			mnemoerr.FieldDocumentID(doc.ID))
	}

	// The maintenance check is best-effort: the document is already
	// persisted, so a failed rollup must not fail the save.
	if err := s.CheckAndMaintain(ctx); err != nil {
		s.logger.WarnContext(ctx, "post-save maintenance failed", "error", err)
	}

	return doc.ID, nil
}

// supersede marks the prior non-obsolete document for doc's version key
// obsolete and persists a delta record referencing both versions.
func (s *Service) supersede(ctx context.Context, doc *store.Document) error {
	prior, err := s.index.List(ctx, store.Filter{
		store.MetaLevel:     string(store.LevelDocument),
		store.MetaType:      doc.Type,
		store.MetaVersionID: doc.VersionID,
		store.MetaObsolete:  false,
	}, 1)
	if err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeIndexQueryFailure, "looking up prior version",
			mnemoerr.FieldVersionKey(doc.Type, doc.VersionID))
	}
	if len(prior) == 0 {
		return nil
	}
	old := prior[0]

	if err := s.index.UpdateMetadata(ctx, old.ID, map[string]any{store.MetaObsolete: true}); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeIndexUpdateFailure, "marking prior version obsolete",
			mnemoerr.FieldDocumentID(old.ID))
	}

	// A missing delta degrades the audit trail but never blocks the
	// new version.
	if err := s.saveDelta(ctx, &old, doc); err != nil {
		s.logger.WarnContext(ctx, "delta record not persisted",
			"predecessor_id", old.ID,
			"successor_id", doc.ID,
			"error", err,
		)
	}
	return nil
}

// saveDelta persists a delta record between two versions.
func (s *Service) saveDelta(ctx context.Context, old *store.Record, doc *store.Document) error {
	deltaText := Delta(old.Content, doc.Content)
	now := s.now()

	deltaDoc := &store.Document{
		ID:           uuid.NewString(),
		Content:      deltaText,
		Author:       doc.Author,
		Type:         doc.Type,
		VersionID:    doc.VersionID,
		Level:        store.LevelDelta,
		CreatedAt:    now,
		LastAccessAt: now,
		Extra: map[string]any{
			store.MetaPredecessorID: old.ID,
			store.MetaSuccessorID:   doc.ID,
		},
	}

	res := s.embedder.Embed(ctx, deltaText)
	if err := s.index.Upsert(ctx, deltaDoc.ID, res.Vector, deltaDoc.Content, deltaDoc.Metadata()); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeMemoryDeltaInvalidReference, "persisting delta record",
			mnemoerr.FieldDocumentID(deltaDoc.ID))
	}
	return nil
}

// lockVersionKey serializes supersession per (type, version_id).
func (s *Service) lockVersionKey(key string) func() {
	s.versionMu.Lock()
	mu, ok := s.versionLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.versionLocks[key] = mu
	}
	s.versionMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
