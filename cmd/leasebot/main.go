package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"leasebot/internal/agent"
	"leasebot/internal/bus"
	"leasebot/internal/config"
	"leasebot/internal/intent"
	"leasebot/internal/knowledge"
	"leasebot/internal/lang"
	"leasebot/internal/provider"
	"leasebot/internal/storage"
	"leasebot/internal/ticket"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "leasebot",
		Short: "leasebot: WhatsApp assistant for rental agreements and maintenance",
		Long:  "leasebot answers tenants' rental-agreement questions and files maintenance tickets over WhatsApp, Telegram, or the terminal.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.leasebot/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(docsCmd())
	root.AddCommand(ticketsCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.General.DataDir, 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Tickets.ImagesDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data", cfg.General.DataDir)
			return nil
		},
	}
}

// pipeline bundles everything the serve and chat commands share.
type pipeline struct {
	cfg    *config.Config
	store  *storage.SQLiteStore
	bus    *bus.InMemoryBus
	events *bus.EventBus
	loop   *agent.Loop
}

func (p *pipeline) Close() {
	p.bus.Close()
	p.store.Close()
}

// buildPipeline wires the store, oracle, classifier, translator, document
// engine, and ticket workflow into a running-ready loop.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	store, err := storage.NewSQLiteStore(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provFactory := provider.NewFactory(cfg, logger)
	prov, err := provFactory.Default()
	if err != nil || prov == nil {
		logger.Warn("no default provider, falling back to ollama", "err", err)
		prov = provider.NewOllama(provider.OllamaConfig{Logger: logger})
	}
	oracle := provider.NewOracle(prov)

	messageBus := bus.New(100, logger)
	events := bus.NewEventBus(logger)

	engine := knowledge.NewEngine(knowledge.EngineConfig{
		Store:     store,
		Retriever: store,
		Oracle:    oracle,
		TopK:      cfg.Knowledge.TopK,
		ChunkSize: cfg.Knowledge.ChunkSize,
		Overlap:   cfg.Knowledge.Overlap,
		Logger:    logger,
	})

	if err := os.MkdirAll(cfg.Tickets.ImagesDir, 0o755); err != nil {
		store.Close()
		return nil, fmt.Errorf("images dir: %w", err)
	}
	workflow := ticket.NewWorkflow(ticket.WorkflowConfig{
		Store:     store,
		Fetcher:   ticket.NewHTTPFetcher(cfg.Channels.WhatsApp.AccessToken),
		ImagesDir: cfg.Tickets.ImagesDir,
		Logger:    logger,
	})

	router := agent.NewRouter(agent.RouterConfig{
		Classifier:  intent.NewClassifier(oracle, logger),
		Translator:  lang.NewTranslator(oracle, logger),
		Engine:      engine,
		Tickets:     workflow,
		Synthesizer: agent.NewSynthesizer(oracle, logger),
		Limiter: agent.NewRateLimiter(
			cfg.RateLimit.MaxRequests,
			time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute,
		),
		Events: events,
		Logger: logger,
	})

	loop := agent.NewLoop(agent.LoopConfig{
		Bus:          messageBus,
		Router:       router,
		Events:       events,
		Logger:       logger,
		Concurrency:  cfg.General.Concurrency,
		SegmentLimit: cfg.Channels.SegmentLimit,
	})

	return &pipeline{
		cfg:    cfg,
		store:  store,
		bus:    messageBus,
		events: events,
		loop:   loop,
	}, nil
}
