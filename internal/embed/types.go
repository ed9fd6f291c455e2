// Package embed provides the embedding-provider abstraction for the
// indexing pipeline: one capability per content kind, plus audio
// transcription.
//
// Providers normalize output vectors to unit length before returning
// them; the cosine-similarity use case makes direction the meaningful
// part of the representation, and the orchestrator never re-normalizes.
package embed

import (
	"context"
	"math"
	"time"
)

// Embedding dimensionalities per content kind. Three dimensionalities
// coexist in one index; the store fixes them at generation creation.
const (
	// TextDimensions is the output dimension of text-embedding-3-large.
	TextDimensions = 3072
	// ImageDimensions is the output dimension of CLIP ViT-B/32.
	ImageDimensions = 512
	// AudioDimensions is the output dimension of CLAP.
	AudioDimensions = 512
)

// Request defaults shared by the HTTP-backed providers.
const (
	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries bounds warm-up retries before surfacing failure.
	DefaultMaxRetries = 3

	// DefaultWarmupWait is used when the provider does not advertise
	// a cooldown for a warming model.
	DefaultWarmupWait = 2 * time.Second

	// MaxWarmupWait caps an advertised cooldown so a misbehaving
	// provider cannot stall the rebuild indefinitely.
	MaxWarmupWait = 30 * time.Second
)

// TextEmbedder generates vector embeddings for text chunks.
type TextEmbedder interface {
	// EmbedText generates a unit-length embedding for a single chunk.
	EmbedText(ctx context.Context, chunk string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string
}

// ImageEmbedder generates vector embeddings for raw image bytes.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// AudioEmbedder generates vector embeddings for raw audio bytes.
type AudioEmbedder interface {
	EmbedAudio(ctx context.Context, data []byte) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// Transcriber converts an audio track to text. Implementations
// degrade to empty text on failure rather than failing the file,
// except for authentication failures which must surface.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Provider bundles the per-kind capabilities handed to the
// orchestrator. It is constructed once, with model and credential
// selection happening at construction rather than hidden first-call
// initialization.
type Provider struct {
	Text        TextEmbedder
	Image       ImageEmbedder
	Audio       AudioEmbedder
	Transcriber Transcriber
}

// Dimensions describes the fixed per-kind embedding dimensionalities
// for one index generation.
type Dimensions struct {
	Text  int
	Image int
	Audio int
}

// Dims returns the provider's per-kind dimensionalities.
func (p *Provider) Dims() Dimensions {
	return Dimensions{
		Text:  p.Text.Dimensions(),
		Image: p.Image.Dimensions(),
		Audio: p.Audio.Dimensions(),
	}
}

// normalizeVector normalizes a vector to unit length.
// Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
