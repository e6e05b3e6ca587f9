// Package dnsfilter discards candidate domains with no resolvable address
// record before any HTTP cost is paid. In practice this removes the large
// majority of generated candidates.
package dnsfilter

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/resilience"
)

// Provider is the circuit breaker identity for DNS lookups.
const Provider = "dns"

// Resolver is the lookup seam; *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Filter batch-checks candidate domains for DNS existence.
type Filter struct {
	resolver Resolver
	store    cache.Store
	breakers *resilience.Breakers

	timeout     time.Duration
	concurrency int
	ttl         time.Duration
}

// New creates a Filter using the system resolver.
func New(cfg config.DNSConfig, store cache.Store, breakers *resilience.Breakers, ttl time.Duration) *Filter {
	f := &Filter{
		resolver:    net.DefaultResolver,
		store:       store,
		breakers:    breakers,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		ttl:         ttl,
	}
	if f.timeout <= 0 {
		f.timeout = 2 * time.Second
	}
	if f.concurrency <= 0 {
		f.concurrency = 10
	}
	return f
}

// WithResolver replaces the resolver, for tests.
func (f *Filter) WithResolver(r Resolver) *Filter {
	f.resolver = r
	return f
}

type dnsEntry struct {
	Exists bool `json:"exists"`
}

// Filter returns the subset of domains with a resolvable address record,
// preserving input order. Individual lookup failures and timeouts count the
// domain as unresolvable; they never abort the batch.
func (f *Filter) Filter(ctx context.Context, domains []string) []string {
	if len(domains) == 0 {
		return nil
	}

	exists := make(map[string]bool, len(domains))
	var pending []string

	for _, d := range domains {
		var e dnsEntry
		ok, err := cache.GetJSON(ctx, f.store, cache.Key("dns", d), &e)
		if err != nil {
			zap.L().Debug("dnsfilter: cache read failed", zap.String("domain", d), zap.Error(err))
		}
		if ok {
			exists[d] = e.Exists
			continue
		}
		pending = append(pending, d)
	}

	if len(pending) > 0 {
		results := make([]bool, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.concurrency)
		for i, d := range pending {
			g.Go(func() error {
				results[i] = f.lookup(gctx, d)
				return nil
			})
		}
		_ = g.Wait()

		for i, d := range pending {
			exists[d] = results[i]
		}
	}

	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if exists[d] {
			out = append(out, d)
		}
	}

	zap.L().Debug("dnsfilter: batch complete",
		zap.Int("in", len(domains)),
		zap.Int("out", len(out)),
	)
	return out
}

// lookup resolves one domain, caching definitive answers. Timeouts and
// other transient failures are not cached: the domain may well exist.
func (f *Filter) lookup(ctx context.Context, domain string) bool {
	if err := f.breakers.Allow(Provider); err != nil {
		return false
	}

	lctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	_, err := f.resolver.LookupHost(lctx, domain)
	if err == nil {
		f.breakers.RecordSuccess(Provider)
		f.cachePut(ctx, domain, true)
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		// NXDOMAIN is an authoritative no, not a resolver fault.
		f.breakers.RecordSuccess(Provider)
		f.cachePut(ctx, domain, false)
		return false
	}

	if resilience.IsTransient(err) {
		f.breakers.RecordFailure(Provider)
	}
	return false
}

func (f *Filter) cachePut(ctx context.Context, domain string, ok bool) {
	if err := cache.PutJSON(ctx, f.store, cache.Key("dns", domain), dnsEntry{Exists: ok}, f.ttl); err != nil {
		zap.L().Debug("dnsfilter: cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}
