package embed

import (
	"context"
	"hash/fnv"
	"strings"
)

// StaticDimensions is the embedding dimension for the static provider.
const StaticDimensions = 256

// StaticEmbedder generates deterministic hash-based embeddings with
// no network or model dependency. It backs the offline provider mode
// and the test suite; semantic quality is reduced but determinism and
// unit-length normalization hold, so every pipeline invariant can be
// exercised without credentials.
type StaticEmbedder struct {
	name string
	dims int
}

// Compile-time interface checks.
var (
	_ TextEmbedder  = (*StaticEmbedder)(nil)
	_ ImageEmbedder = (*StaticEmbedder)(nil)
	_ AudioEmbedder = (*StaticEmbedder)(nil)
)

// NewStaticEmbedder creates a static embedder with the given
// dimensionality.
func NewStaticEmbedder(name string, dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{name: name, dims: dims}
}

// NewStaticProvider bundles static embedders for all three kinds plus
// an empty-text transcriber.
func NewStaticProvider() *Provider {
	return &Provider{
		Text:        NewStaticEmbedder("static-text", StaticDimensions),
		Image:       NewStaticEmbedder("static-image", StaticDimensions),
		Audio:       NewStaticEmbedder("static-audio", StaticDimensions),
		Transcriber: StaticTranscriber{},
	}
}

// EmbedText generates a deterministic embedding for a chunk.
func (e *StaticEmbedder) EmbedText(ctx context.Context, chunk string) ([]float32, error) {
	trimmed := strings.TrimSpace(chunk)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}

	vector := make([]float32, e.dims)
	for _, token := range strings.Fields(strings.ToLower(trimmed)) {
		vector[hashToIndex(token, e.dims)] += 1.0
	}
	return normalizeVector(vector), nil
}

// EmbedImage generates a deterministic embedding from raw bytes.
func (e *StaticEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return e.embedBytes(data), nil
}

// EmbedAudio generates a deterministic embedding from raw bytes.
func (e *StaticEmbedder) EmbedAudio(ctx context.Context, data []byte) ([]float32, error) {
	return e.embedBytes(data), nil
}

// embedBytes folds the payload into the vector 8 bytes at a time.
func (e *StaticEmbedder) embedBytes(data []byte) []float32 {
	vector := make([]float32, e.dims)
	if len(data) == 0 {
		return vector
	}

	h := fnv.New64a()
	for i := 0; i < len(data); i += 8 {
		end := i + 8
		if end > len(data) {
			end = len(data)
		}
		h.Reset()
		_, _ = h.Write(data[i:end])
		vector[h.Sum64()%uint64(e.dims)] += 1.0
	}
	return normalizeVector(vector)
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return e.name }

// StaticTranscriber returns empty text for every input, keeping the
// offline pipeline degradation-complete without a speech model.
type StaticTranscriber struct{}

// Transcribe implements Transcriber.
func (StaticTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	return "", nil
}

// hashToIndex maps a token to a vector index.
func hashToIndex(token string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(dims))
}
