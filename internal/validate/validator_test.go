package validate

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
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
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// siteMap serves canned pages per host and counts fetches.
type siteMap struct {
	mu      sync.Mutex
	pages   map[string]string // host -> html
	status  map[string]int    // host -> status override
	fetches int
}

func (s *siteMap) transport() http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		s.mu.Lock()
		s.fetches++
		body, ok := s.pages[r.URL.Host]
		status := s.status[r.URL.Host]
		s.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
			if !ok {
				status = http.StatusNotFound
			}
		}
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})
}

func (s *siteMap) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func newTestValidator(sites *siteMap) *Validator {
	cfg := config.DiscoveryConfig{
		TypeWords:         []string{"hotel", "otel", "oteli", "pansiyon", "house"},
		AcceptThreshold:   60,
		FastPassThreshold: 70,
		FetchTimeout:      time.Second,
	}
	gen := domaingen.New(cfg)
	v := New(cfg, gen, cache.NewMemory(),
		resilience.NewBreakers(resilience.DefaultBreakerConfig()), time.Hour)
	return v.WithClient(&http.Client{Transport: sites.transport()})
}

func TestFirstAcceptsMatchingCandidate(t *testing.T) {
	sites := &siteMap{pages: map[string]string{
		"pearlhotelistanbul.com": `<html><head><title>Pearl Hotel Istanbul</title></head>` +
			`<body>Welcome to Pearl Hotel in Istanbul, Sultanahmet.</body></html>`,
	}}
	v := newTestValidator(sites)

	res, err := v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"wrongplace.com", "pearlhotelistanbul.com"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pearlhotelistanbul.com", res.Domain)
	assert.Equal(t, model.SourceGenerated, res.Source)
	assert.GreaterOrEqual(t, res.Score, 60.0)
}

func TestFirstReturnsNilWhenNothingClears(t *testing.T) {
	sites := &siteMap{pages: map[string]string{
		"unrelated.com": `<html><title>Totally Different</title><body>plumbing supplies</body></html>`,
	}}
	v := newTestValidator(sites)

	res, err := v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"unrelated.com"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFirstFastPassSkipsLaterCandidates(t *testing.T) {
	sites := &siteMap{pages: map[string]string{
		"pearlistanbul.com": `<html><body>pearl istanbul sultanahmet</body></html>`,
		"other.com":         `<html><body>x</body></html>`,
	}}
	v := newTestValidator(sites)

	res, err := v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"pearlistanbul.com", "other.com"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pearlistanbul.com", res.Domain)
	assert.Equal(t, 1, sites.count(), "fast-pass must stop the scan")
}

func TestFirstNonHTMLScoresNoMatch(t *testing.T) {
	sites := &siteMap{pages: map[string]string{}}
	sites.pages["pearlistanbul.com"] = "%PDF-1.4 binary junk"
	v := newTestValidator(sites)
	v.WithClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/pdf"}},
			Body:       io.NopCloser(strings.NewReader("%PDF-1.4")),
			Request:    r,
		}, nil
	})})

	res, err := v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"pearlistanbul.com"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFirstUsesCacheOnRepeat(t *testing.T) {
	sites := &siteMap{pages: map[string]string{
		"pearlistanbul.com": `<html><body>pearl istanbul</body></html>`,
	}}
	v := newTestValidator(sites)

	_, err := v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"pearlistanbul.com"})
	require.NoError(t, err)
	first := sites.count()

	_, err = v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"pearlistanbul.com"})
	require.NoError(t, err)
	assert.Equal(t, first, sites.count(), "repeat validation must hit the cache")
}

func TestFirstTransientStatusSkipsCandidate(t *testing.T) {
	sites := &siteMap{
		pages:  map[string]string{"down.com": "x", "pearlistanbul.com": `<html><body>pearl istanbul</body></html>`},
		status: map[string]int{"down.com": http.StatusServiceUnavailable},
	}
	v := newTestValidator(sites)

	res, err := v.First(context.Background(), "Pearl Istanbul House", "Istanbul",
		[]string{"down.com", "pearlistanbul.com"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pearlistanbul.com", res.Domain)
}

func TestScoreURL(t *testing.T) {
	sites := &siteMap{pages: map[string]string{
		"pearlistanbul.com": `<html><head><title>Pearl Istanbul</title></head>` +
			`<body>pearl istanbul hotel</body></html>`,
	}}
	v := newTestValidator(sites)

	score, finalURL, err := v.ScoreURL(context.Background(),
		"Pearl Istanbul House", "Istanbul", "https://pearlistanbul.com/tr/home")
	require.NoError(t, err)
	assert.NotEmpty(t, finalURL)
	assert.Greater(t, score, 60.0)

	score, _, err = v.ScoreURL(context.Background(), "Pearl Istanbul House", "Istanbul", "not a url")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestScoreURLFetchesHitPath(t *testing.T) {
	// The homepage is a bare splash page; only the deep page the search hit
	// points at carries the content that scores.
	v := newTestValidator(&siteMap{})
	v.WithClient(&http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body := `<html><body>loading...</body></html>`
		if r.URL.Path == "/en/pearl-istanbul" {
			body = `<html><head><title>Pearl Istanbul</title></head>` +
				`<body>pearl istanbul hotel sultanahmet istanbul</body></html>`
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	})})

	score, _, err := v.ScoreURL(context.Background(),
		"Pearl Istanbul House", "Istanbul", "https://pearlistanbul.com/en/pearl-istanbul")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 60.0, "the hit must be judged by its own page")

	score, _, err = v.ScoreURL(context.Background(),
		"Pearl Istanbul House", "Istanbul", "https://pearlistanbul.com/")
	require.NoError(t, err)
	assert.Less(t, score, 60.0)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "pearl.com", hostOf("https://www.pearl.com/path?q=1"))
	assert.Equal(t, "pearl.com", hostOf("http://pearl.com"))
	assert.Equal(t, "", hostOf(""))
}
