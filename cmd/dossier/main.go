package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dossier/internal/anthropic"
	"github.com/MikeSquared-Agency/dossier/internal/cache"
	"github.com/MikeSquared-Agency/dossier/internal/commit"
	"github.com/MikeSquared-Agency/dossier/internal/config"
	"github.com/MikeSquared-Agency/dossier/internal/extractor"
	"github.com/MikeSquared-Agency/dossier/internal/hermes"
	"github.com/MikeSquared-Agency/dossier/internal/oracle"
	"github.com/MikeSquared-Agency/dossier/internal/processor"
	"github.com/MikeSquared-Agency/dossier/internal/profile"
	"github.com/MikeSquared-Agency/dossier/internal/slack"
	"github.com/MikeSquared-Agency/dossier/internal/store"
	"github.com/MikeSquared-Agency/dossier/internal/store/memory"
	"github.com/MikeSquared-Agency/dossier/internal/synthesis"
	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

var (
	cfg        = config.Load()
	memoryMode bool
)

var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Turn conversation transcripts into structured profiles",
	Long: `dossier extracts knowledge chunks from transcripts with a language model,
maps them onto a fixed taxonomy, merges them into per-user profiles and
scores how complete each profile is.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// one-shot commands print JSON on stdout, so their logs go to stderr
		out := os.Stderr
		if cmd.Name() == "serve" {
			out = os.Stdout
		}
		setupLogging(cfg.LogLevel, out)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&memoryMode, "memory", false, "use the in-memory store instead of Postgres")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newExtractor(logger *slog.Logger) (*extractor.Extractor, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel,
		anthropic.WithBaseURL(cfg.AnthropicBaseURL),
		anthropic.WithRateLimit(cfg.OracleRPS),
	)
	logger.Info("anthropic client ready", "model", cfg.AnthropicModel, "rps", cfg.OracleRPS)
	o := oracle.New(llm, cfg.MaxTokens, logger)
	return extractor.New(o, taxonomy.Default(), logger).
		WithGapAnalysis(cfg.GapAnalysis).
		WithModel(cfg.AnthropicModel), nil
}

// openStore returns the configured profile store and its close func.
func openStore(ctx context.Context, logger *slog.Logger) (profile.Store, func(), error) {
	if memoryMode {
		logger.Warn("using in-memory store, profiles are lost on exit")
		return memory.New(), func() {}, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required (or pass --memory)")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connected")
	return db, db.Close, nil
}

// app bundles everything the commands share.
type app struct {
	proc   *processor.Processor
	hermes *hermes.Client
	cache  *cache.Cache
	close  func()
}

func newApp(ctx context.Context, logger *slog.Logger, withNATS bool) (*app, error) {
	st, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return nil, err
	}
	ext, err := newExtractor(logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	a := &app{}
	var synth commit.Synthesizer = synthesis.Noop{}
	var pubs processor.Publishers
	if withNATS && cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			closeStore()
			return nil, err
		}
		logger.Info("NATS connected", "url", cfg.NatsURL)
		a.hermes = hc
		pubs = append(pubs, hc)
		synth = synthesis.NewNATS(hc, cfg.SynthesisSubject, cfg.SynthesisTimeout)
	} else {
		logger.Warn("NATS not configured, events and synthesis disabled")
	}

	// optional, profiles still update without it
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		pubs = append(pubs, slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger))
		logger.Info("slack poster ready", "channel", cfg.SlackChannel)
	}
	var pub processor.Publisher
	if len(pubs) > 0 {
		pub = pubs
	}

	a.cache = cache.New(ctx, cfg.RedisURL, cfg.ScoreCacheTTL, logger)
	eng := commit.New(st, taxonomy.Default(), synth, logger)
	a.proc = processor.New(st, ext, eng, a.cache, pub, logger)
	a.close = func() {
		if a.hermes != nil {
			a.hermes.Close()
		}
		_ = a.cache.Close()
		closeStore()
	}
	return a, nil
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
