package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/dnsfilter"
	"github.com/lodgeleads/enrich/internal/domaingen"
	"github.com/lodgeleads/enrich/internal/emailcrawl"
	"github.com/lodgeleads/enrich/internal/facility"
	"github.com/lodgeleads/enrich/internal/pipeline"
	"github.com/lodgeleads/enrich/internal/resilience"
	"github.com/lodgeleads/enrich/internal/scheduler"
	"github.com/lodgeleads/enrich/internal/search"
	"github.com/lodgeleads/enrich/internal/validate"
	"github.com/lodgeleads/enrich/pkg/ddg"
	"github.com/lodgeleads/enrich/pkg/perplexity"
)

// engine bundles the wired components a command needs.
type engine struct {
	store     facility.Store
	cache     cache.Store
	scheduler *scheduler.Scheduler
}

func (e *engine) Close() {
	_ = e.store.Close()
	_ = e.cache.Close()
}

// buildEngine wires stores, resilience and the two processors from config.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	cacheStore, err := openCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	store, err := openFacilityStore(ctx, cfg.Store)
	if err != nil {
		cacheStore.Close()
		return nil, err
	}

	breakers := resilience.NewBreakers(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
	})

	gen := domaingen.New(cfg.Discovery)
	dns := dnsfilter.New(cfg.DNS, cacheStore, breakers, cfg.Cache.DNSTTL)
	validator := validate.New(cfg.Discovery, gen, cacheStore, breakers, cfg.Cache.ResolutionTTL)

	providers := []search.Provider{
		search.NewDDGProvider(ddg.NewClient(ddg.WithBaseURL(cfg.Search.DDGBaseURL))),
	}
	if cfg.Search.PerplexityKey != "" {
		providers = append(providers, search.NewPerplexityProvider(perplexity.NewClient(
			cfg.Search.PerplexityKey,
			perplexity.WithBaseURL(cfg.Search.PerplexityURL),
			perplexity.WithModel(cfg.Search.PerplexityModel),
		)))
	}
	fallback := search.New(cfg.Search, cfg.Discovery.AcceptThreshold, validator, gen,
		cacheStore, breakers, providers...).WithTTL(cfg.Cache.SearchTTL)

	crawler := emailcrawl.New(cfg.Email, cacheStore, breakers, cfg.Cache.ResolutionTTL)

	sched := scheduler.New(store, scheduler.NewJobStore(cfg.Jobs.LogCap), cfg.Jobs,
		pipeline.NewWebsiteProcessor(store, gen, dns, validator, fallback),
		pipeline.NewEmailProcessor(store, crawler),
	)

	return &engine{store: store, cache: cacheStore, scheduler: sched}, nil
}

func openCache(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Driver {
	case "memory":
		return cache.NewMemory(), nil
	case "sqlite", "":
		return cache.NewSQLite(cfg.SQLitePath)
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func openFacilityStore(ctx context.Context, cfg config.StoreConfig) (facility.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return facility.NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return facility.NewSQLiteStore(cfg.SQLitePath)
	case "memory":
		return facility.NewMemoryStore(), nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Driver)
	}
}
