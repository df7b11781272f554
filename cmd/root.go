package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quizforge/internal/cache"
	"github.com/abhisek/quizforge/internal/config"
	"github.com/abhisek/quizforge/internal/jobs"
	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/router"
	"github.com/abhisek/quizforge/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "quizforge",
	Short:        "Multi-provider question generator",
	Long:         "QuizForge turns source text into validated multiple-choice questions via Anthropic, OpenAI, Gemini, OpenRouter or Ollama, with caching, quality scoring, deduplication and difficulty balancing.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides QUIZFORGE_DB env var)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// app bundles the wired components behind every subcommand.
type app struct {
	cfg      config.Config
	store    *store.Store
	cache    *cache.Cache // nil when caching is disabled
	router   *router.Router
	pipeline *pipeline.Pipeline
	jobStore *jobs.Store
}

// openApp wires configuration, storage, adapters and the pipeline.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.FromEnv()
	dsn := cfg.DBDSN
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		if err := store.EnsureDir(p); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		cfg.DBDriver = store.DriverSQLite
		dsn = p
	}

	st, err := store.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var c *cache.Cache
	if cfg.CacheEnabled {
		c = cache.New(st, cfg.CacheTTL, cfg.CacheMaxEntries)
	}

	adapters := llm.NewAdapters(ctx, llm.ConfigFromEnv())
	providers := make([]llm.Provider, 0, len(adapters))
	for _, a := range adapters {
		providers = append(providers, a)
	}
	rt := router.New(cfg.DefaultProvider, providers...)

	return &app{
		cfg:      cfg,
		store:    st,
		cache:    c,
		router:   rt,
		pipeline: pipeline.New(rt, c, cfg.PipelineConfig()),
		jobStore: jobs.NewStore(st),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
