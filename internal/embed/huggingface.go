package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ierrors "github.com/indexchat/indexchat/internal/errors"
)

// Hugging Face inference models for the non-text kinds.
const (
	// DefaultImageModel is the CLIP checkpoint for image embeddings.
	DefaultImageModel = "openai/clip-vit-base-patch32"
	// DefaultAudioModel is the CLAP checkpoint for audio embeddings.
	DefaultAudioModel = "laion/clap-htsat-unfused"

	// DefaultHFEndpoint is the Hugging Face inference API base URL.
	DefaultHFEndpoint = "https://api-inference.huggingface.co"
)

// HFConfig configures a Hugging Face inference embedder.
type HFConfig struct {
	Endpoint string        // API base URL (default: DefaultHFEndpoint)
	Token    string        // Bearer token, required
	Model    string        // Model id, e.g. "openai/clip-vit-base-patch32"
	Dims     int           // Expected embedding dimension
	Timeout  time.Duration // Per-request timeout
	Retry    RetryConfig   // Warm-up retry bounds
}

// HFEmbedder generates embeddings through the Hugging Face inference
// API's feature-extraction pipeline. One instance serves one model;
// the same type backs both the image (CLIP) and audio (CLAP)
// capabilities.
type HFEmbedder struct {
	client *http.Client
	config HFConfig
}

// Compile-time interface checks.
var (
	_ ImageEmbedder = (*HFEmbedder)(nil)
	_ AudioEmbedder = (*HFEmbedder)(nil)
)

// NewHFEmbedder creates a Hugging Face inference embedder.
// A missing token is a configuration error caught before any work.
func NewHFEmbedder(cfg HFConfig) (*HFEmbedder, error) {
	if cfg.Token == "" {
		return nil, ierrors.New(ierrors.ErrCodeCredentialsMissing, "HUGGINGFACE_API_KEY is required", nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultHFEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &HFEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}, nil
}

// NewHFImageEmbedder creates the CLIP image embedder.
func NewHFImageEmbedder(token string) (*HFEmbedder, error) {
	return NewHFEmbedder(HFConfig{Token: token, Model: DefaultImageModel, Dims: ImageDimensions})
}

// NewHFAudioEmbedder creates the CLAP audio embedder.
func NewHFAudioEmbedder(token string) (*HFEmbedder, error) {
	return NewHFEmbedder(HFConfig{Token: token, Model: DefaultAudioModel, Dims: AudioDimensions})
}

// EmbedImage generates a unit-length embedding from raw image bytes.
func (e *HFEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	return e.embed(ctx, data)
}

// EmbedAudio generates a unit-length embedding from raw audio bytes.
func (e *HFEmbedder) EmbedAudio(ctx context.Context, data []byte) ([]float32, error) {
	return e.embed(ctx, data)
}

// Dimensions returns the embedding dimension.
func (e *HFEmbedder) Dimensions() int { return e.config.Dims }

// ModelName returns the model identifier.
func (e *HFEmbedder) ModelName() string { return e.config.Model }

// embed posts raw bytes to the feature-extraction pipeline, retrying
// the "model warming up" condition with the advertised cooldown.
func (e *HFEmbedder) embed(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ierrors.New(ierrors.ErrCodeInvalidInput, "cannot embed empty payload", nil)
	}

	var vec []float32
	err := withWarmupRetry(ctx, e.config.Retry, func() error {
		v, err := e.doEmbed(ctx, data)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vec) != e.config.Dims {
		return nil, ierrors.New(ierrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("model %s returned %d dimensions, expected %d", e.config.Model, len(vec), e.config.Dims), nil)
	}

	return normalizeVector(vec), nil
}

// hfErrorResponse is the error body the inference API returns for
// warming models and failures.
type hfErrorResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func (e *HFEmbedder) doEmbed(ctx context.Context, data []byte) ([]float32, error) {
	url := e.config.Endpoint + "/pipeline/feature-extraction/" + e.config.Model

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeProviderNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+e.config.Token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeProviderNetwork, fmt.Sprintf("query %s: %v", e.config.Model, err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeProviderNetwork, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return parseFeatureVector(body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ierrors.AuthError(fmt.Sprintf("hugging face rejected credentials (%d)", resp.StatusCode), nil)
	case http.StatusTooManyRequests:
		return nil, ierrors.New(ierrors.ErrCodeProviderRateLimit, "hugging face rate limit", nil)
	case http.StatusServiceUnavailable:
		var hfErr hfErrorResponse
		if json.Unmarshal(body, &hfErr) == nil && hfErr.Error != "" {
			warming := ierrors.New(ierrors.ErrCodeProviderWarmup,
				fmt.Sprintf("model %s loading: %s", e.config.Model, hfErr.Error), nil)
			if hfErr.EstimatedTime > 0 {
				wait := time.Duration(hfErr.EstimatedTime * float64(time.Second))
				warming.WithDetail("estimated_time", wait.String())
			}
			return nil, warming
		}
		return nil, ierrors.New(ierrors.ErrCodeProviderNetwork, "hugging face unavailable", nil)
	default:
		return nil, ierrors.New(ierrors.ErrCodeProviderNetwork,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}
}

// parseFeatureVector accepts both shapes the pipeline returns: a flat
// vector, or a batch of one vector.
func parseFeatureVector(body []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}

	return nil, ierrors.New(ierrors.ErrCodeDecodeFailed, "unrecognized feature-extraction response shape", nil)
}
