// Package main provides the contextd server entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/contextd/internal/assembler"
	"github.com/thebtf/contextd/internal/config"
	"github.com/thebtf/contextd/internal/db"
	"github.com/thebtf/contextd/internal/llm"
	"github.com/thebtf/contextd/internal/memory"
	"github.com/thebtf/contextd/internal/server"
	"github.com/thebtf/contextd/internal/skills"
	"github.com/thebtf/contextd/internal/summarize"
	"github.com/thebtf/contextd/internal/telemetry"
	"github.com/thebtf/contextd/internal/tokens"
	"github.com/thebtf/contextd/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "contextd.yaml", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	exact := flag.Bool("exact-tokens", false, "Use the tiktoken estimator instead of the heuristic")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setLogLevel(cfg.Logging.Level, *debug)

	store, err := db.NewStore(cfg.DBConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	threadStore := db.NewThreadStore(store)
	skillStore := db.NewSkillStore(store)
	memoryStore := db.NewMemoryStore(store)
	settingsStore := db.NewSettingsStore(store)

	metrics := telemetry.New()

	var estimator tokens.Estimator = tokens.Heuristic{}
	if *exact {
		if exactEstimator, err := tokens.NewExact(); err != nil {
			log.Warn().Err(err).Msg("Tokenizer unavailable, using heuristic estimator")
		} else {
			estimator = exactEstimator
		}
	}

	completer := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	})

	asm := assembler.New(
		settingsStore,
		threadStore,
		skills.NewResolver(skillStore, estimator, metrics),
		memory.NewBuilder(memoryStore),
		summarize.NewSummarizer(threadStore, completer, estimator, cfg.OpenAI.Model, metrics),
		memory.NewExtractor(completer, memoryStore, cfg.OpenAI.Model, metrics),
		estimator,
	)

	svc := server.NewService(Version, store, threadStore, skillStore, memoryStore, settingsStore, asm, estimator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	configWatcher, err := watcher.New(*configPath, func() {
		reloaded, err := config.Load(*configPath)
		if err != nil {
			log.Warn().Err(err).Msg("Config reload failed, keeping previous settings")
			return
		}
		setLogLevel(reloaded.Logging.Level, *debug)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else if err := configWatcher.Start(); err == nil {
		defer configWatcher.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Start(cfg.Server.Port)
	})
	g.Go(func() error {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down")
		case <-gctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return svc.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func setLogLevel(level string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
