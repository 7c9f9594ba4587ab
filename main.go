// Stan is a conversational response service: it classifies the sentiment of
// each message, tracks recent topics per session, and answers through a
// tiered generation chain that always produces a reply.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/stanchat/stan/api"
	"github.com/stanchat/stan/db"
	"github.com/stanchat/stan/internal/config"
	"github.com/stanchat/stan/internal/conversation"
	"github.com/stanchat/stan/internal/fallback"
	"github.com/stanchat/stan/internal/generate"
	"github.com/stanchat/stan/internal/log"
	"github.com/stanchat/stan/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{JSON: true})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Storage: migrate and probe PostgreSQL when configured; any failure
	// degrades to the in-memory store instead of refusing to start.
	connURL := ""
	if cfg.PostgresEnabled {
		connURL = cfg.PostgresURL()
		if err := db.Migrate(connURL, logger); err != nil {
			logger.Warn("database migration failed, using in-memory session storage", "error", err)
			connURL = ""
		}
	}
	st, closeStore := store.Resolve(ctx, connURL, cfg.MaxSessions,
		store.DefaultOpTimeout, store.DefaultProbeTimeout, logger)
	defer closeStore()

	// Generation: external tiers only with an API key; the rule-based tier
	// serves everything either way.
	var tiers []generate.Generator
	if cfg.ExternalEnabled() {
		tiers = append(tiers,
			generate.NewOpenAI("primary", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.PrimaryModel))
		if cfg.BackupModel != "" {
			tiers = append(tiers,
				generate.NewOpenAI("backup", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.BackupModel))
		}
	} else {
		logger.Info("OPENAI_API_KEY not set, running on rule-based replies only")
	}

	opts := []generate.Option{
		generate.WithTierTimeout(cfg.TierTimeout()),
		generate.WithMaxReplyLength(cfg.MaxReplyLength),
	}
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, generate.WithRateLimiter(
			rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	}
	pipeline := generate.NewPipeline(tiers, logger, opts...)

	seed := cfg.FallbackSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	fb, err := fallback.New(seed, logger)
	if err != nil {
		return fmt.Errorf("initializing fallback generator: %w", err)
	}

	engine := conversation.New(st, pipeline, fb, conversation.Config{
		HistoryLimit:   cfg.HistoryLimit,
		MaxPromptChars: cfg.MaxPromptChars,
	}, logger)

	logger.Info("stan ready",
		"addr", cfg.HTTPAddr,
		"storage", st.Type(),
		"model_loaded", pipeline.ModelLoaded())

	return api.NewServer(engine, logger).Run(ctx, cfg.HTTPAddr)
}
