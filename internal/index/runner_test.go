package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexchat/indexchat/internal/chunk"
	"github.com/indexchat/indexchat/internal/embed"
	ierr "github.com/indexchat/indexchat/internal/errors"
	"github.com/indexchat/indexchat/internal/frames"
	"github.com/indexchat/indexchat/internal/store"
)

// fakeSampler serves canned frames without ffmpeg.
type fakeSampler struct {
	frames []frames.Frame
}

func (f *fakeSampler) Sample(ctx context.Context, path string, interval time.Duration) ([]frames.Frame, error) {
	return f.frames, nil
}

// fixedTranscriber returns one transcript for every file.
type fixedTranscriber struct {
	transcript string
}

func (t *fixedTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	return t.transcript, nil
}

// authFailingText fails every embedding call with an auth error.
type authFailingText struct {
	embed.TextEmbedder
}

func (a *authFailingText) EmbedText(ctx context.Context, chunk string) ([]float32, error) {
	return nil, ierr.AuthError("invalid api key", nil)
}

// networkFailingImage fails every call with a transient network error.
type networkFailingImage struct {
	embed.ImageEmbedder
}

func (n *networkFailingImage) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return nil, ierr.New(ierr.ErrCodeProviderNetwork, "connection reset", nil)
}

// flakyText fails transiently on one numbered call and delegates the
// rest.
type flakyText struct {
	embed.TextEmbedder
	failOn int
	calls  int
}

func (f *flakyText) EmbedText(ctx context.Context, chunk string) ([]float32, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, ierr.New(ierr.ErrCodeProviderNetwork, "connection reset", nil)
	}
	return f.TextEmbedder.EmbedText(ctx, chunk)
}

// flakyImage fails transiently on one numbered call and delegates the
// rest.
type flakyImage struct {
	embed.ImageEmbedder
	failOn int
	calls  int
}

func (f *flakyImage) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, ierr.New(ierr.ErrCodeProviderNetwork, "connection reset", nil)
	}
	return f.ImageEmbedder.EmbedImage(ctx, data)
}

func newTestRunner(t *testing.T, inputDir string, mutate func(*Options)) *Runner {
	t.Helper()
	opts := Options{
		InputDir:  inputDir,
		IndexPath: filepath.Join(t.TempDir(), "index.db"),
		Provider:  embed.NewStaticProvider(),
		Sampler:   &fakeSampler{},
	}
	if mutate != nil {
		mutate(&opts)
	}
	r, err := NewRunner(opts)
	require.NoError(t, err)
	return r
}

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// tokens builds a space-separated sequence t0 t1 ... t(n-1).
func tokens(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("t%d", i)
	}
	return strings.Join(parts, " ")
}

func TestRebuild_DocumentChunking(t *testing.T) {
	// Given a 1500 token document and an 800/100 window
	dir := t.TempDir()
	writeInput(t, dir, "notes.txt", tokens(1500))
	r := newTestRunner(t, dir, nil)

	// When rebuilding
	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)

	// Then three text chunks land in the index
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 3, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[store.KindText])

	// The final chunk is findable and carries its chunk position
	lastChunk := tokens(1500)
	lastChunk = strings.Join(strings.Fields(lastChunk)[1400:], " ")
	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedText(context.Background(), lastChunk)
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindText, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes.txt", results[0].Entry.SourceName)
	assert.Equal(t, "chunk_index:2", results[0].Entry.Metadata)
}

func TestRebuild_ImageEntry(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "cat.png", "fake image bytes")
	r := newTestRunner(t, dir, nil)

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedImage(context.Background(), []byte("fake image bytes"))
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindImage, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Image: cat.png", results[0].Entry.TextLabel)
	assert.Empty(t, results[0].Entry.Metadata)
}

func TestRebuild_VideoFrames(t *testing.T) {
	// Given a video the sampler resolves to frames at 0, 10 and 20s
	dir := t.TempDir()
	writeInput(t, dir, "talk.mp4", "container bytes")
	sampler := &fakeSampler{frames: []frames.Frame{
		{Timestamp: 0, Data: []byte("frame-0")},
		{Timestamp: 10, Data: []byte("frame-10")},
		{Timestamp: 20, Data: []byte("frame-20")},
	}}
	r := newTestRunner(t, dir, func(o *Options) { o.Sampler = sampler })

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[store.KindImage])

	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedImage(context.Background(), []byte("frame-10"))
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindImage, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Video Frame: talk.mp4 at 10.0 seconds", results[0].Entry.TextLabel)
	assert.Equal(t, "timestamp:10.0", results[0].Entry.Metadata)
}

func TestRebuild_AudioWholeClipEntry(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "song.mp3", "audio payload")
	r := newTestRunner(t, dir, nil)

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedAudio(context.Background(), []byte("audio payload"))
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindAudio, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Audio File: song.mp3", results[0].Entry.TextLabel)
}

func TestRebuild_TranscriptChunksPrefixed(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "talk.mp4", "container bytes")
	r := newTestRunner(t, dir, func(o *Options) {
		p := embed.NewStaticProvider()
		p.Transcriber = &fixedTranscriber{transcript: "hello from the recording"}
		o.Provider = p
	})

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedText(context.Background(), "hello from the recording")
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindText, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "[Transcript] hello from the recording", results[0].Entry.TextLabel)
	assert.Equal(t, "chunk_index:0", results[0].Entry.Metadata)
}

func TestRebuild_UnsupportedFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "binary.exe", "ignore me")
	writeInput(t, dir, "notes.txt", "a few real words here")
	r := newTestRunner(t, dir, nil)

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesSeen)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestRebuild_MissingInputDirFails(t *testing.T) {
	r := newTestRunner(t, filepath.Join(t.TempDir(), "nope"), nil)

	_, err := r.Rebuild(context.Background())
	require.Error(t, err)
	var ie *ierr.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ierr.ErrCodeInputDirMissing, ie.Code)
}

func TestRebuild_SecondRunReplacesGeneration(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "notes.txt", "the quick brown fox")
	r := newTestRunner(t, dir, nil)

	first, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	second, err := r.Rebuild(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, first.Entries, second.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()
	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.Entries, counts[store.KindText])
}

func TestRebuild_AuthFailureAbortsAndMarksPartial(t *testing.T) {
	// Given an auth-broken text embedder and several documents
	dir := t.TempDir()
	writeInput(t, dir, "a.txt", "first file words")
	writeInput(t, dir, "b.txt", "second file words")
	r := newTestRunner(t, dir, func(o *Options) {
		p := embed.NewStaticProvider()
		p.Text = &authFailingText{TextEmbedder: p.Text}
		o.Provider = p
	})

	// When rebuilding
	stats, err := r.Rebuild(context.Background())

	// Then the run aborts on the first failure
	require.Error(t, err)
	assert.True(t, ierr.IsAuthFailure(err))
	assert.Equal(t, 0, stats.FilesIndexed)

	// And the generation stays on disk marked partial
	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()
	_, status, err := st.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.StatusPartial, status)
}

func TestRebuild_PerFileFailureDoesNotAbort(t *testing.T) {
	// A transient image failure skips the file; the document still lands
	dir := t.TempDir()
	writeInput(t, dir, "notes.txt", "usable document words")
	writeInput(t, dir, "broken.png", "image bytes")
	r := newTestRunner(t, dir, func(o *Options) {
		p := embed.NewStaticProvider()
		p.Image = &networkFailingImage{ImageEmbedder: p.Image}
		o.Provider = p
	})

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()
	_, status, err := st.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.StatusComplete, status)
}

func TestRebuild_TransientChunkFailureSkipsOnlyThatChunk(t *testing.T) {
	// Given a 3-chunk document whose second embedding call fails
	// transiently
	dir := t.TempDir()
	writeInput(t, dir, "notes.txt", tokens(1500))
	r := newTestRunner(t, dir, func(o *Options) {
		p := embed.NewStaticProvider()
		p.Text = &flakyText{TextEmbedder: p.Text, failOn: 2}
		o.Provider = p
	})

	// When rebuilding
	stats, err := r.Rebuild(context.Background())

	// Then the other two chunks land and the file still counts
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 2, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[store.KindText])

	_, status, err := st.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.StatusComplete, status)

	// The surviving chunks keep their original positions
	lastChunk := strings.Join(strings.Fields(tokens(1500))[1400:], " ")
	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedText(context.Background(), lastChunk)
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindText, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk_index:2", results[0].Entry.Metadata)
}

func TestRebuild_TransientFrameFailureSkipsOnlyThatFrame(t *testing.T) {
	// The middle of three frames fails; its neighbors still land
	dir := t.TempDir()
	writeInput(t, dir, "talk.mp4", "container bytes")
	sampler := &fakeSampler{frames: []frames.Frame{
		{Timestamp: 0, Data: []byte("frame-0")},
		{Timestamp: 10, Data: []byte("frame-10")},
		{Timestamp: 20, Data: []byte("frame-20")},
	}}
	r := newTestRunner(t, dir, func(o *Options) {
		o.Sampler = sampler
		p := embed.NewStaticProvider()
		p.Image = &flakyImage{ImageEmbedder: p.Image, failOn: 2}
		o.Provider = p
	})

	stats, err := r.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 2, stats.Entries)

	st, err := store.Open(r.opts.IndexPath)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[store.KindImage])

	query, err := embed.NewStaticEmbedder("q", embed.StaticDimensions).EmbedImage(context.Background(), []byte("frame-20"))
	require.NoError(t, err)
	results, err := st.Search(context.Background(), store.KindImage, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "timestamp:20.0", results[0].Entry.Metadata)
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(Options{IndexPath: "x.db", Provider: embed.NewStaticProvider()})
	require.Error(t, err)

	_, err = NewRunner(Options{InputDir: "in", Provider: embed.NewStaticProvider()})
	require.Error(t, err)

	_, err = NewRunner(Options{InputDir: "in", IndexPath: "x.db"})
	require.Error(t, err)

	r, err := NewRunner(Options{InputDir: "in", IndexPath: "x.db", Provider: embed.NewStaticProvider()})
	require.NoError(t, err)
	assert.Equal(t, chunk.DefaultSize, r.opts.Chunker.Size())
	assert.Equal(t, frames.DefaultInterval, r.opts.FrameInterval)
}
