package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

var testDims = Dimensions{Text: 8, Image: 4, Audio: 4}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "index.sqlite")
	}
	if opts.Dims == (Dimensions{}) {
		opts.Dims = testDims
	}
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateFresh(context.Background()))
	return s
}

// vec builds a unit-ish test vector of length n seeded by i.
func vec(n int, seed float32) []float32 {
	v := make([]float32, n)
	v[0] = 1
	v[1] = seed
	return v
}

func textEntry(source string, seed float32) *Entry {
	return &Entry{
		SourceName: source,
		Kind:       KindText,
		TextLabel:  fmt.Sprintf("chunk from %s", source),
		Embedding:  vec(testDims.Text, seed),
		Metadata:   "chunk_index:0",
	}
}

func TestStore_InsertAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.Insert(ctx, textEntry(fmt.Sprintf("f%d.txt", i), float32(i)))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestStore_InsertRejectsWrongDimensionality(t *testing.T) {
	s := newTestStore(t, Options{})

	entry := textEntry("a.txt", 1)
	entry.Embedding = vec(testDims.Text+1, 1)

	_, err := s.Insert(context.Background(), entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, ierrors.New(ierrors.ErrCodeDimensionMismatch, "", nil))
}

func TestStore_InsertRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.Insert(context.Background(), &Entry{
		SourceName: "x", Kind: ContentKind("video"), TextLabel: "x",
		Embedding: vec(4, 1),
	})
	assert.Error(t, err)
}

func TestStore_ThreeDimensionalitiesCoexist(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.Insert(ctx, textEntry("doc.txt", 1))
	require.NoError(t, err)
	_, err = s.Insert(ctx, &Entry{
		SourceName: "pic.jpg", Kind: KindImage, TextLabel: "Image: pic.jpg",
		Embedding: vec(testDims.Image, 2),
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, &Entry{
		SourceName: "clip.mp3", Kind: KindAudio, TextLabel: "Audio File: clip.mp3",
		Embedding: vec(testDims.Audio, 3),
	})
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[ContentKind]int{KindText: 1, KindImage: 1, KindAudio: 1}, counts)
}

func TestStore_CreateFreshDiscardsPriorGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	ctx := context.Background()

	first := newTestStore(t, Options{Path: path})
	firstGen, _, err := first.Generation(ctx)
	require.NoError(t, err)
	_, err = first.Insert(ctx, textEntry("a.txt", 1))
	require.NoError(t, err)
	require.NoError(t, first.CommitAndClose(ctx))

	second := newTestStore(t, Options{Path: path})
	secondGen, status, err := second.Generation(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, firstGen, secondGen)
	assert.Equal(t, StatusBuilding, status)

	counts, err := second.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStore_CommitMarksComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	ctx := context.Background()

	s := newTestStore(t, Options{Path: path})
	_, err := s.Insert(ctx, textEntry("a.txt", 1))
	require.NoError(t, err)
	require.NoError(t, s.CommitAndClose(ctx))

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	_, status, err := reopened.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status)
	assert.Equal(t, testDims, reopened.Dims())
}

func TestStore_MarkPartialSurvivesClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	ctx := context.Background()

	s := newTestStore(t, Options{Path: path})
	_, err := s.Insert(ctx, textEntry("a.txt", 1))
	require.NoError(t, err)
	require.NoError(t, s.MarkPartial(ctx))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	_, status, err := reopened.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, status)
}

func TestStore_GracefulDegradationWithoutANN(t *testing.T) {
	// Given: accelerated sub-indexes forcibly disabled
	s := newTestStore(t, Options{DisableANN: true})
	ctx := context.Background()

	// When: inserting and searching
	for i := 0; i < 10; i++ {
		_, err := s.Insert(ctx, textEntry(fmt.Sprintf("f%d.txt", i), float32(i)))
		require.NoError(t, err)
	}

	// Then: all inserts succeeded and search falls back to linear scan
	assert.False(t, s.Accelerated(KindText))
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, counts[KindText])

	results, err := s.Search(ctx, KindText, vec(testDims.Text, 3), 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestStore_PersistedSubIndexSurvivesReopen(t *testing.T) {
	// Given: a committed generation with accelerated sub-indexes
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	s := newTestStore(t, Options{Path: path})
	for i := 0; i < 10; i++ {
		_, err := s.Insert(ctx, textEntry(fmt.Sprintf("f%d.txt", i), float32(i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.CommitAndClose(ctx))

	// When: reopening read-only
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	// Then: the persisted graph loads instead of degrading to a scan
	assert.True(t, reopened.Accelerated(KindText))
	results, err := reopened.Search(ctx, KindText, vec(testDims.Text, 5), 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "f5.txt", results[0].Entry.SourceName)
}

func TestStore_AcceleratedAndLinearAgreeOnNearest(t *testing.T) {
	ctx := context.Background()
	query := vec(testDims.Text, 5)

	run := func(disableANN bool) SearchResult {
		s := newTestStore(t, Options{DisableANN: disableANN})
		for i := 0; i < 20; i++ {
			_, err := s.Insert(ctx, textEntry(fmt.Sprintf("f%d.txt", i), float32(i)))
			require.NoError(t, err)
		}
		results, err := s.Search(ctx, KindText, query, 1)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		return results[0]
	}

	linear := run(true)
	accelerated := run(false)
	assert.Equal(t, linear.Entry.SourceName, accelerated.Entry.SourceName)
}

func TestStore_SearchValidatesQueryDimensionality(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.Search(context.Background(), KindText, vec(3, 1), 5)
	assert.Error(t, err)
}

func TestStore_SingleWriterLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")

	first, err := New(Options{Path: path, Dims: testDims})
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	_, err = New(Options{Path: path, Dims: testDims})
	require.Error(t, err)
	assert.ErrorIs(t, err, ierrors.New(ierrors.ErrCodeStoreLocked, "", nil))

	require.NoError(t, first.Close())

	third, err := New(Options{Path: path, Dims: testDims})
	require.NoError(t, err)
	_ = third.Close()
}

func TestStore_MetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	ctx := context.Background()

	s := newTestStore(t, Options{Path: path})
	entry := &Entry{
		SourceName: "talk.mp4",
		Kind:       KindImage,
		TextLabel:  "Video Frame: talk.mp4 at 10.0 seconds",
		Embedding:  vec(testDims.Image, 2),
		Metadata:   "timestamp:10.0",
	}
	_, err := s.Insert(ctx, entry)
	require.NoError(t, err)
	require.NoError(t, s.CommitAndClose(ctx))

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	results, err := reopened.Search(ctx, KindImage, vec(testDims.Image, 2), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "timestamp:10.0", results[0].Entry.Metadata)
	assert.Equal(t, "Video Frame: talk.mp4 at 10.0 seconds", results[0].Entry.TextLabel)
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	original := []float32{0.1, -2.5, 3.75, 0}

	decoded, err := DecodeEmbedding(EncodeEmbedding(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)

	empty, err := DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-9)
	assert.Zero(t, cosineSimilarity(a, []float32{0, 0, 0}))
}
