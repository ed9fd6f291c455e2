// Package cmd provides the CLI commands for IndexChat.
package cmd

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/indexchat/indexchat/internal/chunk"
	"github.com/indexchat/indexchat/internal/config"
	"github.com/indexchat/indexchat/internal/embed"
	ierr "github.com/indexchat/indexchat/internal/errors"
	"github.com/indexchat/indexchat/internal/frames"
	"github.com/indexchat/indexchat/internal/index"
	"github.com/indexchat/indexchat/internal/logging"
	"github.com/indexchat/indexchat/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the indexchat CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexchat",
		Short: "Multi-modal vector indexer for documents, images, audio and video",
		Long: `IndexChat builds a searchable vector index over a directory of
documents, images, audio and video files. Documents are chunked and
embedded as text; media files get transcripts, frame samples and
clip-level embeddings.

Run 'indexchat build' for a one-shot rebuild or 'indexchat watch' to
rebuild automatically on changes.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("indexchat version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to ~/.indexchat/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging loads .env credentials and installs the default logger.
func setupLogging(_ *cobra.Command, _ []string) error {
	// Missing .env is fine; credentials may come from the environment.
	_ = godotenv.Load()

	cfg := logging.DefaultConfig()
	if debugMode {
		cfg.Level = "debug"
	}
	_, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// buildProvider assembles the embedding provider the configuration
// selects: OpenAI plus Hugging Face inference, or the offline static
// provider.
func buildProvider(cfg *config.Config) (*embed.Provider, error) {
	switch cfg.ResolveProvider() {
	case config.ProviderStatic:
		slog.Info("using static embedding provider")
		return embed.NewStaticProvider(), nil

	case config.ProviderOpenAI:
		text, err := embed.NewOpenAIEmbedder(cfg.Embeddings.OpenAIKey, cfg.Embeddings.TextModel)
		if err != nil {
			return nil, err
		}
		image, err := embed.NewHFEmbedder(embed.HFConfig{
			Endpoint: cfg.Embeddings.HFEndpoint,
			Token:    cfg.Embeddings.HFToken,
			Model:    cfg.Embeddings.ImageModel,
			Dims:     embed.ImageDimensions,
		})
		if err != nil {
			return nil, err
		}
		audio, err := embed.NewHFEmbedder(embed.HFConfig{
			Endpoint: cfg.Embeddings.HFEndpoint,
			Token:    cfg.Embeddings.HFToken,
			Model:    cfg.Embeddings.AudioModel,
			Dims:     embed.AudioDimensions,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("using openai embedding provider",
			"text_model", text.ModelName(),
			"image_model", image.ModelName(),
			"audio_model", audio.ModelName())
		return &embed.Provider{
			Text:        embed.NewCachedTextEmbedder(text, cfg.Embeddings.CacheSize),
			Image:       image,
			Audio:       audio,
			Transcriber: text,
		}, nil

	default:
		return nil, ierr.ConfigError("unknown embedding provider", nil).
			WithDetail("provider", cfg.Embeddings.Provider)
	}
}

// buildRunner wires a rebuild runner from the configuration.
func buildRunner(cfg *config.Config, provider *embed.Provider, interval time.Duration) (*index.Runner, error) {
	chunker, err := chunk.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	return index.NewRunner(index.Options{
		InputDir:      cfg.Paths.InputDir,
		IndexPath:     cfg.Paths.IndexPath,
		Provider:      provider,
		Chunker:       chunker,
		Sampler:       frames.NewFFmpegSampler(),
		FrameInterval: interval,
		DisableANN:    cfg.Index.DisableANN,
	})
}
