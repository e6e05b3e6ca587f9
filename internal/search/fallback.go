// Package search resolves facility websites through external search
// providers when candidate-domain generation comes up empty. Providers are
// tried in order, each behind its own circuit breaker, retry policy and the
// search cache; hits are filtered against an OTA/social blocklist and then
// content-validated with the same scorer the generated candidates go
// through.
package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/domaingen"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/resilience"
	"github.com/lodgeleads/enrich/internal/validate"
)

// Fallback is the ordered provider chain.
type Fallback struct {
	providers []Provider
	validator *validate.Validator
	gen       *domaingen.Generator
	store     cache.Store
	breakers  *resilience.Breakers
	retry     resilience.RetryConfig

	blocklist  []string
	maxResults int
	accept     float64
	ttl        time.Duration
}

// New assembles the fallback chain from configuration. An empty Perplexity
// key simply leaves the AI provider out of the chain.
func New(cfg config.SearchConfig, accept float64, validator *validate.Validator, gen *domaingen.Generator, store cache.Store, breakers *resilience.Breakers, providers ...Provider) *Fallback {
	f := &Fallback{
		providers:  providers,
		validator:  validator,
		gen:        gen,
		store:      store,
		breakers:   breakers,
		retry:      resilience.RetryConfig{MaxAttempts: cfg.Retries},
		blocklist:  cfg.Blocklist,
		maxResults: cfg.MaxResults,
		accept:     accept,
		ttl:        24 * time.Hour,
	}
	if f.maxResults <= 0 {
		f.maxResults = 50
	}
	return f
}

// WithTTL overrides the search cache TTL.
func (f *Fallback) WithTTL(ttl time.Duration) *Fallback {
	f.ttl = ttl
	return f
}

// Resolve runs the chain for one facility. A nil result with nil error
// means every provider came up empty; provider faults are absorbed and
// logged, never returned, so the record can still fail over to the next
// provider or settle as not-found.
func (f *Fallback) Resolve(ctx context.Context, name, city string) (*validate.Result, error) {
	queries := f.Queries(name, city)
	if len(queries) == 0 {
		return nil, nil
	}

	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hits, err := f.findCached(ctx, p, queries)
		if err != nil {
			zap.L().Warn("search: provider failed",
				zap.String("provider", p.Name()),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}

		if res := f.pick(ctx, name, city, hits); res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// Queries builds progressively looser search queries from the facility
// name and city.
func (f *Fallback) Queries(name, city string) []string {
	core := strings.Join(f.gen.CoreTokens(name), " ")
	name = strings.TrimSpace(name)
	city = strings.TrimSpace(city)

	var queries []string
	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			return
		}
		for _, existing := range queries {
			if strings.EqualFold(existing, q) {
				return
			}
		}
		queries = append(queries, q)
	}

	add(name + " " + city)
	add(name + " " + city + " hotel website")
	add(core + " " + city + " hotel")
	add(core + " hotel")
	return queries
}

// findCached runs one provider behind its cache, breaker and retry policy.
// Empty result sets are cached too; a provider that found nothing yesterday
// will find nothing today.
func (f *Fallback) findCached(ctx context.Context, p Provider, queries []string) ([]Hit, error) {
	key := cache.Key("search", append([]string{p.Name()}, queries...)...)

	var cached []Hit
	if ok, err := cache.GetJSON(ctx, f.store, key, &cached); err == nil && ok {
		return cached, nil
	}

	hits, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) ([]Hit, error) {
		return resilience.ExecuteVal(ctx, f.breakers, p.Name(), func(ctx context.Context) ([]Hit, error) {
			return p.Find(ctx, queries, f.maxResults)
		})
	})
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []Hit{}
	}

	if err := cache.PutJSON(ctx, f.store, key, hits, f.ttl); err != nil {
		zap.L().Debug("search: cache write failed", zap.String("provider", p.Name()), zap.Error(err))
	}
	return hits, nil
}

// pick filters hits and content-validates them in order, returning the
// first one that clears the acceptance threshold.
func (f *Fallback) pick(ctx context.Context, name, city string, hits []Hit) *validate.Result {
	nameTokens := f.gen.CoreTokens(name)

	for _, h := range hits {
		host := hostOf(h.URL)
		if host == "" || f.blocked(host) {
			continue
		}
		if !relevant(nameTokens, host, h.Title) {
			continue
		}

		score, finalURL, err := f.validator.ScoreURL(ctx, name, city, h.URL)
		if err != nil {
			zap.L().Debug("search: hit validation failed", zap.String("url", h.URL), zap.Error(err))
			continue
		}
		if score >= f.accept {
			return &validate.Result{
				URL:    finalURL,
				Domain: host,
				Score:  score,
				Source: model.SourceSearch,
			}
		}
	}
	return nil
}

// blocked reports whether the host is an OTA, aggregator or social site.
func (f *Fallback) blocked(host string) bool {
	for _, b := range f.blocklist {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

// relevant requires at least one distinctive name token in the hit's host
// or title before paying for a validation fetch.
func relevant(nameTokens []string, host, title string) bool {
	in := host + " " + strings.ToLower(title)
	for _, t := range nameTokens {
		if len(t) >= 2 && strings.Contains(in, t) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(strings.ToLower(s), "www.")
	if s == "" || strings.ContainsAny(s, " \t") || !strings.Contains(s, ".") {
		return ""
	}
	return s
}
