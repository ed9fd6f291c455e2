package embed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

// DefaultTextModel is the text embedding model used for chunks and
// transcripts.
const DefaultTextModel = "text-embedding-3-large"

// transcriptionModel is the speech-to-text model for audio tracks.
const transcriptionModel = openai.Whisper1

// OpenAIEmbedder generates text embeddings and transcriptions via the
// OpenAI API. It also serves as the pipeline's Transcriber.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// Compile-time interface checks.
var (
	_ TextEmbedder = (*OpenAIEmbedder)(nil)
	_ Transcriber  = (*OpenAIEmbedder)(nil)
)

// NewOpenAIEmbedder creates an OpenAI-backed text embedder. The API
// key is required up front; a missing key is a configuration error
// caught before any work begins.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, ierrors.New(ierrors.ErrCodeCredentialsMissing, "OPENAI_API_KEY is required", nil)
	}
	if model == "" {
		model = DefaultTextModel
	}

	dims := 1536
	if model == DefaultTextModel {
		dims = TextDimensions
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
	}, nil
}

// NewOpenAIEmbedderWithClient creates an embedder around an existing
// client. Used by tests to point at a stub server.
func NewOpenAIEmbedderWithClient(client *openai.Client, model string, dims int) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, dims: dims}
}

// EmbedText generates a unit-length embedding for one chunk.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, chunk string) ([]float32, error) {
	if chunk == "" {
		return nil, ierrors.New(ierrors.ErrCodeInvalidInput, "cannot embed empty text", nil)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{chunk},
	})
	if err != nil {
		return nil, classifyOpenAIError("create embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, ierrors.New(ierrors.ErrCodeProviderNetwork, "no embedding data returned", nil)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	copy(vec, raw)

	if len(vec) != e.dims {
		return nil, ierrors.New(ierrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", e.dims, len(vec)), nil)
	}

	return normalizeVector(vec), nil
}

// Transcribe converts an audio or video file's audio track to text.
// Extraction-style failures collapse to empty text; authentication
// failures surface so the orchestrator can abort the run.
func (e *OpenAIEmbedder) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    transcriptionModel,
		FilePath: path,
	})
	if err != nil {
		classified := classifyOpenAIError("transcribe", err)
		if ierrors.IsAuthFailure(classified) {
			return "", classified
		}
		slog.Warn("transcription failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	return resp.Text, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return e.model }

// classifyOpenAIError maps API failures onto the pipeline's error
// taxonomy. The auth-vs-transient distinction drives the
// orchestrator's abort-vs-continue policy.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return ierrors.AuthError(fmt.Sprintf("%s: %s", op, apiErr.Message), err)
		case 429:
			return ierrors.New(ierrors.ErrCodeProviderRateLimit, fmt.Sprintf("%s: rate limited", op), err)
		}
	}
	return ierrors.New(ierrors.ErrCodeProviderNetwork, fmt.Sprintf("%s: %v", op, err), err)
}
