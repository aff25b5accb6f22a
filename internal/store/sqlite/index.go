// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorIndex = (*Index)(nil)

// Index implements store.VectorIndex backed by SQLite with sqlite-vec.
// Embeddings live in a vec0 virtual table; content and metadata live in
// a companion records table joined by id.
type Index struct {
	db         *sql.DB
	dimensions int
}

// NewIndex opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and companion records table.
func NewIndex(dbPath string, dimensions int) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexOpenFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexOpenFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexOpenFailure, "migrating index tables: %w", err)
	}

	return &Index{db: db, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	// Cosine metric: callers derive similarity as 1 - distance, which
	// only holds when the distance is cosine, not the vec0 L2 default.
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const recDDL = `
CREATE TABLE IF NOT EXISTS vector_records (
	id       TEXT PRIMARY KEY,
	content  TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(recDDL); err != nil {
		return fmt.Errorf("creating vector_records table: %w", err)
	}

	return nil
}

// Upsert inserts or replaces an embedding together with its content and
// metadata.
func (x *Index) Upsert(ctx context.Context, id string, embedding []float32, content string, metadata map[string]any) error {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "serializing embedding: %w", err)
	}

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "marshalling metadata: %w", err)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "deleting existing vector %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "inserting vector %s: %w", id, err)
	}

	const recQ = `INSERT INTO vector_records(id, content, metadata) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, recQ, id, content, string(metaJSON)); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "upserting record %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpsertFailure, "committing upsert: %w", err)
	}
	return nil
}

// Get returns a single record by id, including its embedding.
func (x *Index) Get(ctx context.Context, id string) (*store.Record, error) {
	const q = `SELECT r.content, r.metadata, v.embedding
FROM vector_records r
JOIN vectors v ON v.id = r.id
WHERE r.id = ?`

	var content, metaStr string
	var blob []byte
	err := x.db.QueryRowContext(ctx, q, id).Scan(&content, &metaStr, &blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, mnemoerr.Errorf(mnemoerr.CodeIndexRecordNotFound, "record %s not found", id)
		}
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "getting record %s: %w", id, err)
	}

	rec := &store.Record{
		ID:        id,
		Content:   content,
		Embedding: deserializeFloat32(blob),
	}
	if err := unmarshalMetadata(metaStr, &rec.Metadata); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "unmarshalling metadata for %s: %w", id, err)
	}
	return rec, nil
}

// UpdateMetadata merges patch into the record's stored metadata map
// using a read-modify-write inside one transaction.
func (x *Index) UpdateMetadata(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpdateFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var metaStr string
	err = tx.QueryRowContext(ctx, `SELECT metadata FROM vector_records WHERE id = ?`, id).Scan(&metaStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return mnemoerr.Errorf(mnemoerr.CodeIndexRecordNotFound, "record %s not found", id)
		}
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpdateFailure, "reading metadata for %s: %w", id, err)
	}

	var meta map[string]any
	if err := unmarshalMetadata(metaStr, &meta); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpdateFailure, "unmarshalling metadata for %s: %w", id, err)
	}
	if meta == nil {
		meta = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		meta[k] = v
	}

	merged, err := json.Marshal(meta)
	if err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpdateFailure, "marshalling merged metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE vector_records SET metadata = ? WHERE id = ?`, string(merged), id); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpdateFailure, "updating metadata for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexUpdateFailure, "committing metadata update: %w", err)
	}
	return nil
}

// queryCandidateFloor is the minimum KNN over-fetch. Metadata filtering
// happens after the KNN pass, so the candidate set must be wider than k
// or filtered tiers would starve.
const queryCandidateFloor = 64

// Query performs a k-nearest-neighbor search restricted to records
// matching the metadata filter. Distance is the vec0 metric: lower =
// more similar.
func (x *Index) Query(ctx context.Context, embedding []float32, k int, filter store.Filter) ([]store.Record, error) {
	if k <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "serializing query vector: %w", err)
	}

	candidates := k * 8
	if candidates < queryCandidateFloor {
		candidates = queryCandidateFloor
	}

	var qb strings.Builder
	qb.WriteString(`SELECT c.id, c.distance, r.content, r.metadata
FROM (SELECT id, distance FROM vectors WHERE embedding MATCH ? AND k = ?) c
JOIN vector_records r ON r.id = c.id`)
	args := []any{blob, candidates}

	where, filterArgs := filterClauses(filter)
	if where != "" {
		qb.WriteString(" WHERE ")
		qb.WriteString(where)
		args = append(args, filterArgs...)
	}

	qb.WriteString(` ORDER BY c.distance LIMIT ?`)
	args = append(args, k)

	rows, err := x.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "querying vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []store.Record
	for rows.Next() {
		var rec store.Record
		var metaStr string

		if err := rows.Scan(&rec.ID, &rec.Distance, &rec.Content, &metaStr); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "scanning query result: %w", err)
		}
		if err := unmarshalMetadata(metaStr, &rec.Metadata); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "unmarshalling metadata for %s: %w", rec.ID, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "iterating query results: %w", err)
	}

	return results, nil
}

// List returns records matching the metadata filter without a
// similarity query, ordered by insertion. limit <= 0 means no limit.
func (x *Index) List(ctx context.Context, filter store.Filter, limit int) ([]store.Record, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT r.id, r.content, r.metadata FROM vector_records r`)
	var args []any

	where, filterArgs := filterClauses(filter)
	if where != "" {
		qb.WriteString(" WHERE ")
		qb.WriteString(where)
		args = append(args, filterArgs...)
	}

	qb.WriteString(` ORDER BY r.rowid`)
	if limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := x.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "listing records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []store.Record
	for rows.Next() {
		var rec store.Record
		var metaStr string

		if err := rows.Scan(&rec.ID, &rec.Content, &metaStr); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "scanning list row: %w", err)
		}
		if err := unmarshalMetadata(metaStr, &rec.Metadata); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "unmarshalling metadata for %s: %w", rec.ID, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "iterating list rows: %w", err)
	}

	return results, nil
}

// Count returns the number of records in the index.
func (x *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_records`).Scan(&count)
	if err != nil {
		return 0, mnemoerr.Errorf(mnemoerr.CodeIndexQueryFailure, "counting records: %w", err)
	}
	return count, nil
}

// Compact rebuilds the database file, reclaiming space freed by
// resummarized content. VACUUM cannot run inside a transaction.
func (x *Index) Compact(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, `VACUUM`); err != nil {
		return mnemoerr.Errorf(mnemoerr.CodeIndexCompactFailure, "vacuuming index db: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// filterClauses turns an equality filter into json_extract conditions
// over the metadata column. Keys are sorted for a stable query shape.
func filterClauses(filter store.Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf(`json_extract(r.metadata, '$.%s') = ?`, k))
		args = append(args, filterValue(filter[k]))
	}
	return strings.Join(clauses, " AND "), args
}

// filterValue converts a Go filter value to what json_extract yields:
// JSON booleans come back as integer 0/1.
func filterValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func unmarshalMetadata(metaStr string, dst *map[string]any) error {
	if metaStr == "" || metaStr == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(metaStr), dst)
}

// deserializeFloat32 decodes the little-endian float32 blob produced by
// sqlite_vec.SerializeFloat32.
func deserializeFloat32(blob []byte) []float32 {
	out := make([]float32, 0, len(blob)/4)
	for i := 0; i+4 <= len(blob); i += 4 {
		bits := binary.LittleEndian.Uint32(blob[i : i+4])
		out = append(out, math.Float32frombits(bits))
	}
	return out
}
