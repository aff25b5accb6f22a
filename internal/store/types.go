// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import (
	"time"
)

// Level classifies where a document sits in the summarization hierarchy.
type Level string

const (
	// LevelDocument is a raw ingested unit.
	LevelDocument Level = "document"
	// LevelSummary is a rollup of a group of archived documents.
	LevelSummary Level = "summary"
	// LevelDelta describes the difference between two versions of a
	// logical document.
	LevelDelta Level = "delta"
)

// Reserved metadata keys for document fields persisted alongside the
// embedding. Extra metadata shares the same flat map, so these names
// must not be reused by callers.
const (
	MetaLevel        = "level"
	MetaType         = "type"
	MetaAuthor       = "author"
	MetaVersionID    = "version_id"
	MetaObsolete     = "obsolete"
	MetaArchived     = "archived"
	MetaCreatedAt    = "created_at"
	MetaLastAccessAt = "last_access_at"
	MetaSummary      = "summary"
)

// Extra metadata keys written by the summarizer and compactor.
const (
	MetaSourceDocumentIDs = "source_document_ids"
	MetaWeek              = "week"
	MetaPredecessorID     = "predecessor_id"
	MetaSuccessorID       = "successor_id"
	MetaOriginalLength    = "original_length"
)

// Document is the unit of storage: a text body plus embedding and
// lifecycle metadata. Obsolete and Archived transition false to true
// only, never back.
type Document struct {
	ID           string
	Content      string
	Author       string
	Type         string
	VersionID    string
	Level        Level
	CreatedAt    time.Time
	LastAccessAt time.Time
	Obsolete     bool
	Archived     bool
	// Extra is an open key/value bag, e.g. the source document IDs a
	// summary was built from.
	Extra map[string]any
}

// Metadata flattens the document's lifecycle fields and extra bag into
// the metadata map persisted with the index record. Reserved keys win
// over colliding extra keys.
func (d *Document) Metadata() map[string]any {
	m := make(map[string]any, len(d.Extra)+9)
	for k, v := range d.Extra {
		m[k] = v
	}
	m[MetaLevel] = string(d.Level)
	m[MetaType] = d.Type
	m[MetaAuthor] = d.Author
	m[MetaVersionID] = d.VersionID
	m[MetaObsolete] = d.Obsolete
	m[MetaArchived] = d.Archived
	m[MetaCreatedAt] = FormatTime(d.CreatedAt)
	m[MetaLastAccessAt] = FormatTime(d.LastAccessAt)
	return m
}

// DocumentFromRecord rebuilds a Document from an index record. Unknown
// metadata keys land in Extra.
func DocumentFromRecord(r *Record) *Document {
	d := &Document{
		ID:      r.ID,
		Content: r.Content,
	}
	extra := make(map[string]any)
	for k, v := range r.Metadata {
		switch k {
		case MetaLevel:
			d.Level = Level(asString(v))
		case MetaType:
			d.Type = asString(v)
		case MetaAuthor:
			d.Author = asString(v)
		case MetaVersionID:
			d.VersionID = asString(v)
		case MetaObsolete:
			d.Obsolete = asBool(v)
		case MetaArchived:
			d.Archived = asBool(v)
		case MetaCreatedAt:
			d.CreatedAt = ParseTime(asString(v))
		case MetaLastAccessAt:
			d.LastAccessAt = ParseTime(asString(v))
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		d.Extra = extra
	}
	return d
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asBool tolerates the JSON round trip: booleans stored through the
// index come back as bool, numeric 0/1, or float64.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}

// FormatTime serialises a timestamp for metadata storage.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime deserialises a metadata timestamp. Malformed values come
// back as the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
