package dnsfilter

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeResolver resolves only the domains in its set and counts lookups.
type fakeResolver struct {
	mu       sync.Mutex
	existing map[string]bool
	failWith error
	lookups  int
}

func (r *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.mu.Lock()
	r.lookups++
	r.mu.Unlock()

	if r.failWith != nil {
		return nil, r.failWith
	}
	if r.existing[host] {
		return []string{"203.0.113.10"}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func (r *fakeResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

func newTestFilter(r Resolver, breakers *resilience.Breakers) *Filter {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig())
	}
	f := New(config.DNSConfig{Timeout: time.Second, Concurrency: 4},
		cache.NewMemory(), breakers, time.Hour)
	return f.WithResolver(r)
}

func TestFilterPreservesOrder(t *testing.T) {
	r := &fakeResolver{existing: map[string]bool{
		"a.com": true, "c.com": true, "e.com": true,
	}}
	f := newTestFilter(r, nil)

	got := f.Filter(context.Background(), []string{"a.com", "b.com", "c.com", "d.com", "e.com"})
	assert.Equal(t, []string{"a.com", "c.com", "e.com"}, got)
}

func TestFilterEmptyInput(t *testing.T) {
	f := newTestFilter(&fakeResolver{}, nil)
	assert.Nil(t, f.Filter(context.Background(), nil))
}

func TestFilterLookupFailureDoesNotAbortBatch(t *testing.T) {
	r := &fakeResolver{failWith: &net.DNSError{Err: "timeout", IsTimeout: true}}
	f := newTestFilter(r, nil)

	got := f.Filter(context.Background(), []string{"a.com", "b.com"})
	assert.Empty(t, got)
	assert.Equal(t, 2, r.count())
}

func TestFilterCachesDefinitiveAnswers(t *testing.T) {
	r := &fakeResolver{existing: map[string]bool{"a.com": true}}
	f := newTestFilter(r, nil)

	first := f.Filter(context.Background(), []string{"a.com", "b.com"})
	require.Equal(t, []string{"a.com"}, first)
	require.Equal(t, 2, r.count())

	second := f.Filter(context.Background(), []string{"a.com", "b.com"})
	assert.Equal(t, []string{"a.com"}, second)
	assert.Equal(t, 2, r.count(), "cached answers must not trigger lookups")
}

func TestFilterOpenCircuitSkipsLookups(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	})
	breakers.RecordFailure(Provider)

	r := &fakeResolver{existing: map[string]bool{"a.com": true}}
	f := newTestFilter(r, breakers)

	got := f.Filter(context.Background(), []string{"a.com"})
	assert.Empty(t, got)
	assert.Equal(t, 0, r.count(), "open circuit must not consume lookups")
}

func TestFilterTimeoutsAreNotCached(t *testing.T) {
	r := &fakeResolver{failWith: &net.DNSError{Err: "timeout", IsTimeout: true}}
	f := newTestFilter(r, nil)

	f.Filter(context.Background(), []string{"a.com"})
	require.Equal(t, 1, r.count())

	// The domain may exist; a retry must look it up again.
	r.mu.Lock()
	r.failWith = nil
	r.existing = map[string]bool{"a.com": true}
	r.mu.Unlock()

	got := f.Filter(context.Background(), []string{"a.com"})
	assert.Equal(t, []string{"a.com"}, got)
	assert.Equal(t, 2, r.count())
}
