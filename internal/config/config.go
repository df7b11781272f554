// Package config loads application-level settings from the
// environment. Provider credentials live in the llm package; this
// covers the cache, pipeline, queue, database and HTTP surface.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/abhisek/quizforge/internal/cache"
	"github.com/abhisek/quizforge/internal/jobs"
	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/store"
)

// Config is the application configuration. Every field has a working
// default; loading never fails.
type Config struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	CacheMaxEntries int

	ParallelThreshold int
	ChunkSize         int
	MaxWorkers        int

	DedupEnabled   bool
	DedupThreshold int

	BalanceEnabled bool

	QualityProvider string
	DefaultProvider string

	MaxTextChars int

	QueueWorkers int

	DBDriver store.Driver
	DBDSN    string

	HTTPAddr string
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		CacheEnabled:      true,
		CacheTTL:          cache.DefaultTTL,
		CacheMaxEntries:   cache.DefaultMaxEntries,
		ParallelThreshold: pipeline.DefaultParallelThreshold,
		ChunkSize:         pipeline.DefaultChunkSize,
		MaxWorkers:        pipeline.DefaultMaxWorkers,
		DedupEnabled:      true,
		DedupThreshold:    pipeline.DefaultDedupThreshold,
		BalanceEnabled:    true,
		MaxTextChars:      pipeline.DefaultMaxTextChars,
		QueueWorkers:      jobs.DefaultMaxConcurrent,
		DBDriver:          store.DriverSQLite,
		HTTPAddr:          ":8080",
	}
}

// FromEnv loads the configuration from QUIZFORGE_* environment
// variables on top of the defaults. Malformed values are ignored.
func FromEnv() Config {
	cfg := Default()

	boolVar(&cfg.CacheEnabled, "QUIZFORGE_CACHE_ENABLED")
	if n, ok := intEnv("QUIZFORGE_CACHE_TTL_DAYS"); ok && n > 0 {
		cfg.CacheTTL = time.Duration(n) * 24 * time.Hour
	}
	intVar(&cfg.CacheMaxEntries, "QUIZFORGE_CACHE_MAX_ENTRIES")

	intVar(&cfg.ParallelThreshold, "QUIZFORGE_PARALLEL_THRESHOLD")
	intVar(&cfg.ChunkSize, "QUIZFORGE_PARALLEL_CHUNK_SIZE")
	intVar(&cfg.MaxWorkers, "QUIZFORGE_PARALLEL_MAX_WORKERS")

	boolVar(&cfg.DedupEnabled, "QUIZFORGE_DEDUP_ENABLED")
	intVar(&cfg.DedupThreshold, "QUIZFORGE_DEDUP_THRESHOLD")

	boolVar(&cfg.BalanceEnabled, "QUIZFORGE_DIFFICULTY_BALANCE_ENABLED")

	cfg.QualityProvider = os.Getenv("QUIZFORGE_QUALITY_PROVIDER")
	cfg.DefaultProvider = os.Getenv("QUIZFORGE_DEFAULT_PROVIDER")

	intVar(&cfg.MaxTextChars, "QUIZFORGE_MAX_TEXT_LENGTH")
	intVar(&cfg.QueueWorkers, "QUIZFORGE_QUEUE_WORKERS")

	if v := os.Getenv("QUIZFORGE_DB_DRIVER"); v == string(store.DriverPostgres) {
		cfg.DBDriver = store.DriverPostgres
	}
	cfg.DBDSN = os.Getenv("QUIZFORGE_DB_DSN")

	if v := os.Getenv("QUIZFORGE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}

	return cfg
}

// PipelineConfig derives the pipeline settings.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		FanOut: pipeline.FanOut{
			Threshold:  c.ParallelThreshold,
			ChunkSize:  c.ChunkSize,
			MaxWorkers: c.MaxWorkers,
		},
		DedupThreshold:  c.DedupThreshold,
		QualityProvider: c.QualityProvider,
		DisableDedup:    !c.DedupEnabled,
		DisableBalance:  !c.BalanceEnabled,
		MaxTextChars:    c.MaxTextChars,
	}
}

func intEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func intVar(dst *int, key string) {
	if n, ok := intEnv(key); ok && n > 0 {
		*dst = n
	}
}

func boolVar(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}
