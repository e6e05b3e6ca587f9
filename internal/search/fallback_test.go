package search

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/domaingen"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/resilience"
	"github.com/lodgeleads/enrich/internal/validate"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeProvider struct {
	name  string
	hits  []Hit
	err   error
	calls int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Find(context.Context, []string, int) ([]Hit, error) {
	p.calls++
	return p.hits, p.err
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// servePages wires the validator so any hit host resolves to canned HTML.
func servePages(pages map[string]string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body, ok := pages[r.URL.Host]
		status := http.StatusOK
		if !ok {
			status = http.StatusNotFound
		}
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})}
}

func newTestFallback(t *testing.T, pages map[string]string, providers ...Provider) *Fallback {
	t.Helper()
	dcfg := config.DiscoveryConfig{
		TypeWords:         []string{"hotel", "otel", "oteli", "house"},
		AcceptThreshold:   60,
		FastPassThreshold: 70,
		FetchTimeout:      time.Second,
	}
	gen := domaingen.New(dcfg)
	store := cache.NewMemory()
	breakers := resilience.NewBreakers(resilience.DefaultBreakerConfig())
	validator := validate.New(dcfg, gen, store, breakers, time.Hour).
		WithClient(servePages(pages))

	scfg := config.SearchConfig{
		Retries:    1,
		MaxResults: 10,
		Blocklist:  []string{"booking.com", "tripadvisor.com", "facebook.com"},
	}
	return New(scfg, dcfg.AcceptThreshold, validator, gen, store, breakers, providers...)
}

func TestResolvePicksValidatedHit(t *testing.T) {
	pages := map[string]string{
		"pearlistanbul.com": `<html><head><title>Pearl Istanbul</title></head>` +
			`<body>pearl istanbul hotel sultanahmet</body></html>`,
	}
	p := &fakeProvider{name: "ddg", hits: []Hit{
		{URL: "https://booking.com/hotel/pearl-istanbul", Title: "Pearl Istanbul - Booking"},
		{URL: "https://pearlistanbul.com", Title: "Pearl Istanbul"},
	}}
	f := newTestFallback(t, pages, p)

	res, err := f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pearlistanbul.com", res.Domain)
	assert.Equal(t, model.SourceSearch, res.Source)
	assert.GreaterOrEqual(t, res.Score, 60.0)
}

func TestResolveBlocklistNeverValidated(t *testing.T) {
	p := &fakeProvider{name: "ddg", hits: []Hit{
		{URL: "https://booking.com/hotel/pearl", Title: "Pearl Istanbul"},
		{URL: "https://www.tripadvisor.com/pearl", Title: "Pearl Istanbul"},
	}}
	f := newTestFallback(t, map[string]string{}, p)

	res, err := f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveFallsThroughToNextProvider(t *testing.T) {
	pages := map[string]string{
		"pearlistanbul.com": `<html><body>pearl istanbul hotel</body></html>`,
	}
	failing := &fakeProvider{name: "ddg", err: resilience.Transient(assert.AnError, 503)}
	backup := &fakeProvider{name: "perplexity", hits: []Hit{
		{URL: "https://pearlistanbul.com", Title: "Pearl Istanbul"},
	}}
	f := newTestFallback(t, pages, failing, backup)

	res, err := f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pearlistanbul.com", res.Domain)
	assert.Equal(t, 1, backup.calls)
}

func TestResolveEmptyEverywhereIsNotAnError(t *testing.T) {
	f := newTestFallback(t, map[string]string{},
		&fakeProvider{name: "ddg"}, &fakeProvider{name: "perplexity"})

	res, err := f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveCachesProviderResults(t *testing.T) {
	p := &fakeProvider{name: "ddg"}
	f := newTestFallback(t, map[string]string{}, p)

	_, err := f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	_, err = f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls, "the empty result must be served from cache")
}

func TestResolveIrrelevantHitsSkipped(t *testing.T) {
	p := &fakeProvider{name: "ddg", hits: []Hit{
		{URL: "https://randomdirectory.com", Title: "Top 10 Hotels"},
	}}
	f := newTestFallback(t, map[string]string{
		"randomdirectory.com": `<html><body>list of hotels</body></html>`,
	}, p)

	res, err := f.Resolve(context.Background(), "Pearl Istanbul House", "Istanbul")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestQueriesProgressive(t *testing.T) {
	f := newTestFallback(t, map[string]string{}, &fakeProvider{name: "ddg"})

	queries := f.Queries("Pearl Istanbul House", "Istanbul")
	require.NotEmpty(t, queries)
	assert.Equal(t, "Pearl Istanbul House Istanbul", queries[0])
	assert.Contains(t, queries, "pearl istanbul Istanbul hotel")
	for i, q := range queries {
		for j := i + 1; j < len(queries); j++ {
			assert.NotEqual(t, strings.ToLower(q), strings.ToLower(queries[j]))
		}
	}
}

func TestBlockedMatchesSubdomains(t *testing.T) {
	f := newTestFallback(t, map[string]string{}, &fakeProvider{name: "ddg"})
	assert.True(t, f.blocked("booking.com"))
	assert.True(t, f.blocked("secure.booking.com"))
	assert.False(t, f.blocked("mybooking.example.com"))
}
