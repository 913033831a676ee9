package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"metalwatch/internal/alerting"
	"metalwatch/internal/answer"
	"metalwatch/internal/assistant"
	"metalwatch/internal/catalog"
	"metalwatch/internal/config"
	"metalwatch/internal/fetcher"
	"metalwatch/internal/llm"
	"metalwatch/internal/metrics"
	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
	"metalwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Fixture, when set, serves prices from a CSV file instead of PostgreSQL.
	Fixture string
	// Now overrides the clock used for relative dates.
	Now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Now: time.Now}
}

// priceStore is what the commands need from either backend.
type priceStore interface {
	storage.PriceReader
	storage.PriceWriter
	storage.MetalLister
	Ping(ctx context.Context) error
}

func (a *App) openStore(ctx context.Context) (priceStore, func(), error) {
	if a.Fixture != "" {
		store, err := loadFixture(a.Fixture)
		if err != nil {
			return nil, nil, err
		}
		a.Logger.Info().Str("fixture", a.Fixture).Msg("serving prices from fixture")
		return store, func() {}, nil
	}
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured; pass --fixture to use a CSV file")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(pool)
	return store, store.Close, nil
}

func loadFixture(path string) (*storage.MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	recs, err := storage.LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	return storage.NewMemoryStore(recs...), nil
}

func (a *App) newParser() *query.Parser {
	return query.NewParser(a.Config.ResolveLocation(), a.Now)
}

// newAssistant wires the question pipeline over store. The returned closer
// releases the Redis client when one was opened.
func (a *App) newAssistant(ctx context.Context, store priceStore) (*assistant.Assistant, func(), error) {
	recorder := metrics.Recorder{}

	var gen answer.Generator
	if a.Config.Generative.Enabled {
		g := a.Config.Generative
		gen = llm.New(llm.Options{
			BaseURL:     g.BaseURL,
			APIKey:      g.APIKey,
			Model:       g.Model,
			Temperature: g.Temperature,
			MaxTokens:   g.MaxTokens,
		}, a.Logger)
	} else {
		a.Logger.Info().Msg("generative backend disabled; answers come from computed context")
	}
	synth := answer.New(gen, answer.Options{Timeout: a.Config.Generative.Timeout}, recorder, a.Logger)

	cache, closeCatalog, err := a.newCatalog(store)
	if err != nil {
		return nil, nil, err
	}
	if _, err := cache.RefreshIfStale(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("initial catalog refresh failed")
	}

	res := resolver.New(store, resolver.Options{
		WindowDays:   a.Config.Assistant.WindowDays,
		LookbackDays: a.Config.Assistant.LookbackDays,
	}, a.Logger)

	asst := assistant.New(a.newParser(), res, synth, cache, recorder, assistant.Options{
		TrailingDays:         a.Config.Assistant.TrailingDays,
		EvidenceExcerptChars: a.Config.Assistant.EvidenceExcerptChars,
	}, a.Logger)
	return asst, closeCatalog, nil
}

func (a *App) newCatalog(store storage.MetalLister) (*catalog.Cache, func(), error) {
	cfg := a.Config.Catalog

	var source catalog.Source
	switch cfg.Source {
	case "static":
		source = catalog.StaticSource{query.Gold, query.Silver, query.Platinum, query.Palladium}
	case "http":
		source = catalog.NewHTTPSource(catalog.HTTPOptions{URL: cfg.URL, APIKey: cfg.APIKey, Timeout: cfg.RequestTimeout})
	default:
		source = catalog.StoreSource{Lister: store}
	}

	closer := func() {}
	if a.Config.Cache.Enabled {
		client, err := newRedis(a.Config.Cache)
		if err != nil {
			return nil, nil, err
		}
		source = catalog.NewRedisMirror(client, "", cfg.TTL, source, a.Logger)
		closer = func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close redis client")
			}
		}
	}
	return catalog.NewCache(source, cfg.TTL, a.Now, a.Logger), closer, nil
}

func newRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse cache.redis_url: %w", err)
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	return redis.NewClient(opts), nil
}

func (a *App) newFeed() fetcher.PriceFetcher {
	if a.Config.Feed.URL == "" {
		return nil
	}
	cfg := a.Config.Feed
	return fetcher.NewFeed(fetcher.FeedOptions{
		BaseURL: cfg.URL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Metals:  cfg.Metals,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

// AskOptions configure the ask command.
type AskOptions struct {
	Question string
	Stream   bool
	Evidence bool
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Metal     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	XLSXPath  string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	// When is free text such as "yesterday" or "1 Mar"; empty means latest.
	When   string
	Metals []string
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// DigestOptions configure a one-shot digest.
type DigestOptions struct {
	Send bool
}
