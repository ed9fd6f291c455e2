package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

// Options configures a Store.
type Options struct {
	// Path is the SQLite database file. Sub-index graph files and the
	// writer lock live next to it.
	Path string

	// Dims fixes the per-kind embedding dimensionalities for the
	// generation. Required for CreateFresh.
	Dims Dimensions

	// DisableANN skips the accelerated vector sub-indexes entirely,
	// forcing every search through the linear-scan fallback.
	DisableANN bool
}

// Store owns one on-disk index. The SQLite row-table is the source of
// truth; the per-kind HNSW sub-indexes are best-effort mirrors.
//
// The store is single-writer: New acquires a file lock that is held
// until the store closes.
type Store struct {
	mu         sync.Mutex
	db         *sql.DB
	path       string
	dims       Dimensions
	disableANN bool
	lock       *flock.Flock
	generation string
	subs       map[ContentKind]*subIndex
	closed     bool
}

// New creates a writer store and acquires the single-writer lock.
// The index itself is not touched until CreateFresh.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, ierrors.New(ierrors.ErrCodeInvalidInput, "store path is required", nil)
	}
	for _, kind := range Kinds {
		if opts.Dims.For(kind) <= 0 {
			return nil, ierrors.New(ierrors.ErrCodeInvalidInput,
				fmt.Sprintf("dimensionality for kind %q must be positive", kind), nil)
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, ierrors.StoreError("create index directory", err)
	}

	lock := flock.New(opts.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ierrors.StoreError("acquire index lock", err)
	}
	if !locked {
		return nil, ierrors.New(ierrors.ErrCodeStoreLocked,
			fmt.Sprintf("index at %s is locked by another writer", opts.Path), nil)
	}

	return &Store{
		path:       opts.Path,
		dims:       opts.Dims,
		disableANN: opts.DisableANN,
		lock:       lock,
		subs:       make(map[ContentKind]*subIndex),
	}, nil
}

// CreateFresh destroys any existing persisted index and establishes
// an empty generation: the row-table plus up to three kind-specific
// sub-indexes. Sub-index creation failures are skipped silently save
// for a log line; callers must not assume the accelerated path exists.
func (s *Store) CreateFresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierrors.StoreError("store is closed", nil)
	}
	if s.db != nil {
		return ierrors.StoreError("generation already created", nil)
	}

	// Drop-and-recreate: remove every artifact of the prior generation.
	for _, path := range s.artifactPaths() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return ierrors.StoreError(fmt.Sprintf("remove %s", path), err)
		}
	}

	db, err := openDatabase(s.path)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return ierrors.StoreError("create schema", err)
	}

	s.generation = uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO generation (gen_id, status, created_at, text_dim, image_dim, audio_dim)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.generation, StatusBuilding, time.Now().UTC(), s.dims.Text, s.dims.Image, s.dims.Audio)
	if err != nil {
		_ = db.Close()
		return ierrors.StoreError("record generation", err)
	}

	s.db = db

	if s.disableANN {
		slog.Info("vector sub-indexes disabled, searches will use linear scan")
		return nil
	}

	for _, kind := range Kinds {
		sub, err := newSubIndex(kind, s.dims.For(kind))
		if err != nil {
			// Expected degraded mode, not an error condition.
			slog.Warn("vector sub-index unavailable",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.subs[kind] = sub
	}

	return nil
}

// Insert appends an entry to the row-table and obtains a fresh
// monotonic id, then best-effort mirrors the embedding into the
// matching sub-index. A mirror failure is swallowed: the row-table
// insert stands as the source of truth.
func (s *Store) Insert(ctx context.Context, e *Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.db == nil {
		return 0, ierrors.StoreError("store is not open for writing", nil)
	}
	if !e.Kind.Valid() {
		return 0, ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("unknown content kind %q", e.Kind), nil)
	}
	if want := s.dims.For(e.Kind); len(e.Embedding) != want {
		return 0, ierrors.New(ierrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("kind %s expects %d dimensions, got %d", e.Kind, want, len(e.Embedding)), nil)
	}

	var metadata any
	if e.Metadata != "" {
		metadata = e.Metadata
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (source_name, content_kind, text_label, embedding, embedding_dimensions, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SourceName, string(e.Kind), e.TextLabel, EncodeEmbedding(e.Embedding), len(e.Embedding), metadata)
	if err != nil {
		return 0, ierrors.StoreError("insert entry", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, ierrors.StoreError("read inserted id", err)
	}
	e.ID = id

	if sub := s.subs[e.Kind]; sub != nil {
		if mirrorErr := sub.add(id, e.Embedding); mirrorErr != nil {
			slog.Debug("sub-index mirror failed, row-table remains authoritative",
				slog.Int64("id", id),
				slog.String("kind", string(e.Kind)),
				slog.String("error", mirrorErr.Error()),
			)
		}
	}

	return id, nil
}

// MarkPartial flags the generation as abandoned mid-rebuild. The rows
// written so far stay on disk but the generation is never presented
// as complete.
func (s *Store) MarkPartial(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE generation SET status = ?, completed_at = ? WHERE gen_id = ?`,
		StatusPartial, time.Now().UTC(), s.generation)
	if err != nil {
		return ierrors.StoreError("mark generation partial", err)
	}
	return nil
}

// CommitAndClose flushes and finalizes the generation: the generation
// row flips to complete, the sub-index graphs are persisted
// best-effort, and the writer lock is released.
func (s *Store) CommitAndClose(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if s.db != nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE generation SET status = ?, completed_at = ? WHERE gen_id = ? AND status = ?`,
			StatusComplete, time.Now().UTC(), s.generation, StatusBuilding); err != nil {
			return ierrors.StoreError("finalize generation", err)
		}

		for kind, sub := range s.subs {
			if sub == nil {
				continue
			}
			if err := sub.save(s.graphPath(kind)); err != nil {
				slog.Warn("vector sub-index persist failed",
					slog.String("kind", string(kind)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return s.closeLocked()
}

// Close releases resources without finalizing the generation. Safe to
// call multiple times and after CommitAndClose.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			firstErr = err
		}
		s.db = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return ierrors.StoreError("close store", firstErr)
	}
	return nil
}

// Search returns the k entries of the given kind nearest to the query
// vector. The accelerated sub-index is used when present; otherwise
// the row-table is scanned linearly, which is always correct.
func (s *Store) Search(ctx context.Context, kind ContentKind, query []float32, k int) ([]SearchResult, error) {
	s.mu.Lock()
	db := s.db
	sub := s.subs[kind]
	dims := s.dims
	s.mu.Unlock()

	if db == nil {
		return nil, ierrors.StoreError("store is not open", nil)
	}
	if !kind.Valid() {
		return nil, ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("unknown content kind %q", kind), nil)
	}
	if want := dims.For(kind); len(query) != want {
		return nil, ierrors.New(ierrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("kind %s expects %d dimensions, got %d", kind, want, len(query)), nil)
	}
	if k <= 0 {
		k = 10
	}

	if sub != nil && sub.count() > 0 {
		if results, err := s.searchAccelerated(ctx, db, sub, query, k); err == nil {
			return results, nil
		}
		// Accelerated path failed; fall through to the linear scan.
	}
	return s.searchLinear(ctx, db, kind, query, k)
}

func (s *Store) searchAccelerated(ctx context.Context, db *sql.DB, sub *subIndex, query []float32, k int) ([]SearchResult, error) {
	ids := sub.search(query, k)
	if len(ids) == 0 {
		return []SearchResult{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, source_name, content_kind, text_label, embedding, metadata
		 FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]Entry, len(ids))
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		byID[entry.ID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the sub-index's nearest-first ordering.
	results := make([]SearchResult, 0, len(ids))
	for _, id := range ids {
		entry, ok := byID[int64(id)]
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			Entry: entry,
			Score: cosineSimilarity(query, entry.Embedding),
		})
	}
	return results, nil
}

func (s *Store) searchLinear(ctx context.Context, db *sql.DB, kind ContentKind, query []float32, k int) ([]SearchResult, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, source_name, content_kind, text_label, embedding, metadata
		 FROM documents WHERE content_kind = ?`, string(kind))
	if err != nil {
		return nil, ierrors.StoreError("scan row-table", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, ierrors.StoreError("decode entry", err)
		}
		results = append(results, SearchResult{
			Entry: entry,
			Score: cosineSimilarity(query, entry.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, ierrors.StoreError("scan row-table", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// Counts returns per-kind entry counts from the row-table.
func (s *Store) Counts(ctx context.Context) (map[ContentKind]int, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return nil, ierrors.StoreError("store is not open", nil)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT content_kind, COUNT(*) FROM documents GROUP BY content_kind`)
	if err != nil {
		return nil, ierrors.StoreError("count entries", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[ContentKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, ierrors.StoreError("scan counts", err)
		}
		counts[ContentKind(kind)] = n
	}
	return counts, rows.Err()
}

// Generation returns the current generation id and status.
func (s *Store) Generation(ctx context.Context) (id, status string, err error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return "", "", ierrors.StoreError("store is not open", nil)
	}
	err = db.QueryRowContext(ctx,
		`SELECT gen_id, status FROM generation ORDER BY created_at DESC LIMIT 1`).Scan(&id, &status)
	if err != nil {
		return "", "", ierrors.StoreError("read generation", err)
	}
	return id, status, nil
}

// Open opens an existing index for reading (stats, search). The
// per-kind dimensionalities come from the generation row; persisted
// sub-index graphs are loaded best-effort, with linear scan as the
// fallback. No writer lock is taken.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ierrors.New(ierrors.ErrCodeInputDirMissing,
			fmt.Sprintf("no index at %s, run a rebuild first", path), err)
	}

	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path: path,
		db:   db,
		subs: make(map[ContentKind]*subIndex),
	}

	err = db.QueryRow(
		`SELECT gen_id, text_dim, image_dim, audio_dim FROM generation ORDER BY created_at DESC LIMIT 1`).
		Scan(&s.generation, &s.dims.Text, &s.dims.Image, &s.dims.Audio)
	if err != nil {
		_ = db.Close()
		return nil, ierrors.StoreError("read generation metadata", err)
	}

	for _, kind := range Kinds {
		sub, err := newSubIndex(kind, s.dims.For(kind))
		if err != nil {
			continue
		}
		if err := sub.load(s.graphPath(kind)); err != nil {
			continue // degraded mode, linear scan covers this kind
		}
		s.subs[kind] = sub
	}

	return s, nil
}

// Dims returns the generation's per-kind dimensionalities.
func (s *Store) Dims() Dimensions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims
}

// Accelerated reports whether the kind currently has a usable
// sub-index. Exposed for tests and the stats command.
func (s *Store) Accelerated(kind ContentKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[kind] != nil
}

func (s *Store) graphPath(kind ContentKind) string {
	return fmt.Sprintf("%s.%s.hnsw", s.path, kind)
}

// artifactPaths lists every file a generation can leave on disk.
func (s *Store) artifactPaths() []string {
	paths := []string{s.path, s.path + "-wal", s.path + "-shm"}
	for _, kind := range Kinds {
		paths = append(paths, s.graphPath(kind), s.graphPath(kind)+".tmp")
	}
	return paths
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_name TEXT NOT NULL,
	content_kind TEXT NOT NULL,
	text_label TEXT NOT NULL,
	embedding BLOB NOT NULL,
	embedding_dimensions INTEGER NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(content_kind);
CREATE TABLE IF NOT EXISTS generation (
	gen_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	text_dim INTEGER NOT NULL,
	image_dim INTEGER NOT NULL,
	audio_dim INTEGER NOT NULL
);`

// openDatabase opens the SQLite file with the pragmas the pipeline
// needs: WAL for crash safety, a single connection since the index is
// single-writer.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ierrors.StoreError("open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ierrors.StoreError("set pragma", err)
		}
	}

	return db, nil
}

// scanEntry reads one documents row.
func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry    Entry
		kind     string
		blob     []byte
		metadata sql.NullString
	)
	if err := rows.Scan(&entry.ID, &entry.SourceName, &kind, &entry.TextLabel, &blob, &metadata); err != nil {
		return Entry{}, err
	}
	vec, err := DecodeEmbedding(blob)
	if err != nil {
		return Entry{}, err
	}
	entry.Kind = ContentKind(kind)
	entry.Embedding = vec
	entry.Metadata = metadata.String
	return entry, nil
}
