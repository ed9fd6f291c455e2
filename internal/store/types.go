// Package store owns the on-disk index: a SQLite row-table as the
// durable, always-correct record, plus up to three kind-specific
// HNSW vector sub-indexes that act purely as performance
// accelerators. The sub-indexes may legitimately be absent; every
// read path degrades to a linear scan of the row-table.
package store

// ContentKind is the semantic kind of an entry's embedded content.
// A video never produces a "video" kind: its transcript becomes text
// entries and its frames become image entries.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindAudio ContentKind = "audio"
)

// Kinds lists all content kinds in a fixed order.
var Kinds = []ContentKind{KindText, KindImage, KindAudio}

// Valid reports whether the kind is one of the three known kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio:
		return true
	default:
		return false
	}
}

// Entry is one retrievable unit of the index.
type Entry struct {
	// ID is assigned by the store: unique and monotonically
	// increasing within one index generation.
	ID int64

	// SourceName identifies the originating file for display and
	// provenance. It is a name, not a path.
	SourceName string

	// Kind is the semantic kind of the embedded content.
	Kind ContentKind

	// TextLabel is the human-readable description or content of the
	// entry: chunk text, transcript excerpt, or a synthetic caption.
	TextLabel string

	// Embedding has length exactly equal to the generation's declared
	// dimensionality for Kind.
	Embedding []float32

	// Metadata optionally carries provenance such as "chunk_index:2"
	// or "timestamp:10.0".
	Metadata string
}

// Dimensions fixes the per-kind embedding dimensionalities for one
// index generation. Three dimensionalities coexist in a single index.
type Dimensions struct {
	Text  int
	Image int
	Audio int
}

// For returns the dimensionality declared for a kind.
func (d Dimensions) For(kind ContentKind) int {
	switch kind {
	case KindText:
		return d.Text
	case KindImage:
		return d.Image
	case KindAudio:
		return d.Audio
	default:
		return 0
	}
}

// SearchResult is one nearest-neighbor match.
type SearchResult struct {
	Entry Entry
	Score float64 // cosine similarity, higher is closer
}

// Generation statuses persisted in the metadata row.
const (
	// StatusBuilding marks a generation still being written.
	StatusBuilding = "building"
	// StatusComplete marks a fully committed generation.
	StatusComplete = "complete"
	// StatusPartial marks a generation abandoned mid-rebuild, kept
	// on disk but never presented as complete.
	StatusPartial = "partial"
)
