// Package index orchestrates full index rebuilds: it walks the input
// directory, routes each file through extraction, chunking, and
// embedding by content kind, and writes the results into a fresh
// index generation.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/indexchat/indexchat/internal/chunk"
	"github.com/indexchat/indexchat/internal/classify"
	"github.com/indexchat/indexchat/internal/embed"
	ierr "github.com/indexchat/indexchat/internal/errors"
	"github.com/indexchat/indexchat/internal/extract"
	"github.com/indexchat/indexchat/internal/frames"
	"github.com/indexchat/indexchat/internal/store"
)

// Options configures a rebuild Runner.
type Options struct {
	// InputDir is the flat directory whose files get indexed.
	InputDir string

	// IndexPath is the SQLite database file for the index.
	IndexPath string

	Provider  *embed.Provider
	Extractor *extract.Extractor
	Sampler   frames.Sampler
	Chunker   *chunk.Chunker

	// FrameInterval is the spacing between sampled video frames.
	FrameInterval time.Duration

	// DisableANN forces the index store onto its linear-scan path.
	DisableANN bool
}

// Stats summarizes one rebuild.
type Stats struct {
	FilesSeen    int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	Entries      int
	Generation   string
	Duration     time.Duration
}

// Runner executes full rebuilds. Each rebuild opens its own store
// writer, so a Runner can be reused across watcher cycles.
type Runner struct {
	opts Options
}

// NewRunner validates the wiring and returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.InputDir == "" {
		return nil, ierr.New(ierr.ErrCodeInvalidInput, "input directory is required", nil)
	}
	if opts.IndexPath == "" {
		return nil, ierr.New(ierr.ErrCodeInvalidInput, "index path is required", nil)
	}
	if opts.Provider == nil || opts.Provider.Text == nil ||
		opts.Provider.Image == nil || opts.Provider.Audio == nil ||
		opts.Provider.Transcriber == nil {
		return nil, ierr.New(ierr.ErrCodeInvalidInput, "embedding provider is incomplete", nil)
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New()
	}
	if opts.Chunker == nil {
		opts.Chunker = chunk.MustDefault()
	}
	if opts.Sampler == nil {
		opts.Sampler = frames.NewFFmpegSampler()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = frames.DefaultInterval
	}
	return &Runner{opts: opts}, nil
}

// Rebuild replaces the index with a fresh generation built from the
// current contents of the input directory.
//
// Per-file failures are logged and skipped; the rebuild continues.
// Authentication failures abort the run because they would recur for
// every remaining file, leaving the generation marked partial.
func (r *Runner) Rebuild(ctx context.Context) (*Stats, error) {
	start := time.Now()

	info, err := os.Stat(r.opts.InputDir)
	if err != nil || !info.IsDir() {
		return nil, ierr.New(ierr.ErrCodeInputDirMissing,
			fmt.Sprintf("input directory %s does not exist", r.opts.InputDir), err)
	}

	dims := r.opts.Provider.Dims()
	st, err := store.New(store.Options{
		Path: r.opts.IndexPath,
		Dims: store.Dimensions{
			Text:  dims.Text,
			Image: dims.Image,
			Audio: dims.Audio,
		},
		DisableANN: r.opts.DisableANN,
	})
	if err != nil {
		return nil, err
	}

	if err := st.CreateFresh(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	gen, _, _ := st.Generation(ctx)

	slog.Info("rebuild started",
		"input_dir", r.opts.InputDir,
		"generation", gen)

	stats := &Stats{Generation: gen}
	if err := r.indexDirectory(ctx, st, stats); err != nil {
		if perr := st.MarkPartial(ctx); perr != nil {
			slog.Error("failed to mark generation partial", "error", perr)
		}
		_ = st.Close()
		stats.Duration = time.Since(start)
		slog.Error("rebuild aborted",
			"generation", gen,
			"files_indexed", stats.FilesIndexed,
			"error", err)
		return stats, err
	}

	if err := st.CommitAndClose(ctx); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	slog.Info("rebuild complete",
		"generation", gen,
		"files_seen", stats.FilesSeen,
		"files_indexed", stats.FilesIndexed,
		"files_skipped", stats.FilesSkipped,
		"files_failed", stats.FilesFailed,
		"entries", stats.Entries,
		"duration", stats.Duration.String())
	return stats, nil
}

// indexDirectory walks the input directory non-recursively and routes
// each regular file by its content kind.
func (r *Runner) indexDirectory(ctx context.Context, st *store.Store, stats *Stats) error {
	entries, err := os.ReadDir(r.opts.InputDir)
	if err != nil {
		return ierr.New(ierr.ErrCodeInputDirMissing, "failed to read input directory", err)
	}

	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return ierr.New(ierr.ErrCodeIndexingFailed, "rebuild cancelled", err)
		}

		name := de.Name()
		stats.FilesSeen++

		kind := classify.Classify(name)
		if kind == classify.KindUnsupported {
			stats.FilesSkipped++
			slog.Debug("skipping unsupported file", "file", name)
			continue
		}

		path := filepath.Join(r.opts.InputDir, name)
		inserted, err := r.indexFile(ctx, st, path, name, kind)
		if err != nil {
			if ierr.IsFatal(err) {
				return err
			}
			stats.FilesFailed++
			slog.Warn("file indexing failed, continuing",
				"file", name,
				"error", err)
			continue
		}
		if inserted == 0 {
			stats.FilesSkipped++
			slog.Debug("file produced no entries", "file", name)
			continue
		}

		stats.FilesIndexed++
		stats.Entries += inserted
		slog.Debug("file indexed", "file", name, "kind", kind.String(), "entries", inserted)
	}
	return nil
}

// indexFile dispatches one file and returns how many entries it added.
func (r *Runner) indexFile(ctx context.Context, st *store.Store, path, name string, kind classify.Kind) (int, error) {
	switch kind {
	case classify.KindDocument:
		return r.indexDocument(ctx, st, path, name)
	case classify.KindImage:
		return r.indexImage(ctx, st, path, name)
	case classify.KindAudio:
		return r.indexAudio(ctx, st, path, name)
	case classify.KindVideo:
		return r.indexVideo(ctx, st, path, name)
	default:
		return 0, nil
	}
}

// indexDocument extracts text, chunks it, and stores one text entry
// per chunk.
func (r *Runner) indexDocument(ctx context.Context, st *store.Store, path, name string) (int, error) {
	text := r.opts.Extractor.Extract(path)
	if text == "" {
		return 0, nil
	}
	return r.indexChunks(ctx, st, name, text, "")
}

// indexChunks embeds each chunk of text and inserts it with its chunk
// position. labelPrefix distinguishes transcripts from document text.
func (r *Runner) indexChunks(ctx context.Context, st *store.Store, name, text, labelPrefix string) (int, error) {
	chunks := r.opts.Chunker.Chunk(text)
	inserted := 0
	for i, c := range chunks {
		vec, err := r.opts.Provider.Text.EmbedText(ctx, c)
		if err != nil {
			if ierr.IsFatal(err) {
				return inserted, err
			}
			slog.Warn("chunk embedding failed, skipping chunk",
				"file", name,
				"chunk_index", i,
				"error", err)
			continue
		}
		_, err = st.Insert(ctx, &store.Entry{
			SourceName: name,
			Kind:       store.KindText,
			TextLabel:  labelPrefix + c,
			Embedding:  vec,
			Metadata:   fmt.Sprintf("chunk_index:%d", i),
		})
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// indexImage embeds the image bytes as a single image entry.
func (r *Runner) indexImage(ctx context.Context, st *store.Store, path, name string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, ierr.New(ierr.ErrCodeDecodeFailed, "failed to read image", err).
			WithDetail("file", name)
	}

	vec, err := r.opts.Provider.Image.EmbedImage(ctx, data)
	if err != nil {
		return 0, err
	}
	_, err = st.Insert(ctx, &store.Entry{
		SourceName: name,
		Kind:       store.KindImage,
		TextLabel:  "Image: " + name,
		Embedding:  vec,
	})
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// indexAudio stores transcript chunks as text entries plus one audio
// entry for the whole clip.
func (r *Runner) indexAudio(ctx context.Context, st *store.Store, path, name string) (int, error) {
	inserted, err := r.indexTranscript(ctx, st, path, name)
	if err != nil {
		return inserted, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return inserted, ierr.New(ierr.ErrCodeDecodeFailed, "failed to read audio", err).
			WithDetail("file", name)
	}
	vec, err := r.opts.Provider.Audio.EmbedAudio(ctx, data)
	if err != nil {
		if ierr.IsFatal(err) {
			return inserted, err
		}
		slog.Warn("clip embedding failed, skipping audio entry",
			"file", name,
			"error", err)
		return inserted, nil
	}
	_, err = st.Insert(ctx, &store.Entry{
		SourceName: name,
		Kind:       store.KindAudio,
		TextLabel:  "Audio File: " + name,
		Embedding:  vec,
	})
	if err != nil {
		return inserted, err
	}
	return inserted + 1, nil
}

// indexVideo stores transcript chunks as text entries and sampled
// frames as image entries with their timestamps.
func (r *Runner) indexVideo(ctx context.Context, st *store.Store, path, name string) (int, error) {
	inserted, err := r.indexTranscript(ctx, st, path, name)
	if err != nil {
		return inserted, err
	}

	sampled, err := r.opts.Sampler.Sample(ctx, path, r.opts.FrameInterval)
	if err != nil {
		return inserted, ierr.New(ierr.ErrCodeDecodeFailed, "frame sampling failed", err).
			WithDetail("file", name)
	}
	for _, f := range sampled {
		vec, err := r.opts.Provider.Image.EmbedImage(ctx, f.Data)
		if err != nil {
			if ierr.IsFatal(err) {
				return inserted, err
			}
			slog.Warn("frame embedding failed, skipping frame",
				"file", name,
				"timestamp", f.Timestamp,
				"error", err)
			continue
		}
		_, err = st.Insert(ctx, &store.Entry{
			SourceName: name,
			Kind:       store.KindImage,
			TextLabel:  fmt.Sprintf("Video Frame: %s at %.1f seconds", name, f.Timestamp),
			Embedding:  vec,
			Metadata:   fmt.Sprintf("timestamp:%.1f", f.Timestamp),
		})
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// indexTranscript transcribes the media file and stores the transcript
// chunks as text entries. A missing or empty transcript is not an
// error; transcription failures other than authentication degrade to
// no transcript inside the provider.
func (r *Runner) indexTranscript(ctx context.Context, st *store.Store, path, name string) (int, error) {
	transcript, err := r.opts.Provider.Transcriber.Transcribe(ctx, path)
	if err != nil {
		return 0, err
	}
	if transcript == "" {
		return 0, nil
	}
	return r.indexChunks(ctx, st, name, transcript, "[Transcript] ")
}
