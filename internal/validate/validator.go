// Package validate probes candidate domains over HTTP and scores each page
// against the facility it is supposed to belong to.
package validate

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/domaingen"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/resilience"
)

// Provider is the circuit breaker identity for validation fetches.
const Provider = "http"

// maxBodyBytes bounds how much of a page is read for scoring.
const maxBodyBytes = 256 << 10

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	tagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
)

// Result is an accepted website resolution.
type Result struct {
	URL    string              `json:"url"`
	Domain string              `json:"domain"`
	Score  float64             `json:"score"`
	Source model.WebsiteSource `json:"source"`
}

// Validator fetches candidate domains and accepts the first one whose score
// clears the acceptance threshold.
type Validator struct {
	client   *http.Client
	scorer   *Scorer
	gen      *domaingen.Generator
	store    cache.Store
	breakers *resilience.Breakers

	accept   float64
	fastPass float64
	ttl      time.Duration
}

// New creates a Validator.
func New(cfg config.DiscoveryConfig, gen *domaingen.Generator, store cache.Store, breakers *resilience.Breakers, ttl time.Duration) *Validator {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		client:   &http.Client{Timeout: timeout},
		scorer:   NewScorer(cfg.TypeWords),
		gen:      gen,
		store:    store,
		breakers: breakers,
		accept:   cfg.AcceptThreshold,
		fastPass: cfg.FastPassThreshold,
		ttl:      ttl,
	}
}

// WithClient replaces the HTTP client, for tests.
func (v *Validator) WithClient(c *http.Client) *Validator {
	v.client = c
	return v
}

// Scorer exposes the underlying scorer for reuse by the search fallback.
func (v *Validator) Scorer() *Scorer { return v.scorer }

// First probes candidates in order and returns the first acceptable match,
// or nil when none clears the threshold. Per-candidate fetch failures are
// recorded and skipped; they never abort the scan.
func (v *Validator) First(ctx context.Context, name, city string, candidates []string) (*Result, error) {
	nameTokens := v.gen.CoreTokens(name)

	for _, domain := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "validate: scan cancelled")
		}

		page, err := v.fetch(ctx, domain, "http://"+domain)
		if err != nil || !page.OK {
			continue
		}

		if fast := v.scorer.FastScore(nameTokens, city, domain, page.Text); fast >= v.fastPass {
			zap.L().Debug("validate: fast-pass accept",
				zap.String("domain", domain),
				zap.Float64("score", fast),
			)
			return &Result{URL: page.URL, Domain: domain, Score: fast, Source: model.SourceGenerated}, nil
		}

		score := v.scorer.Score(nameTokens, city, domain, page.Title, page.Text)
		if score >= v.accept {
			zap.L().Debug("validate: accept",
				zap.String("domain", domain),
				zap.Float64("score", score),
			)
			return &Result{URL: page.URL, Domain: domain, Score: score, Source: model.SourceGenerated}, nil
		}
	}
	return nil, nil
}

// ScoreURL fetches an arbitrary URL (typically a search hit) and scores it
// for the facility. The hit is judged by the page it actually points at,
// not the site's homepage. Returns the score and the final URL after
// redirects; an unreachable or non-HTML page scores zero.
func (v *Validator) ScoreURL(ctx context.Context, name, city, rawURL string) (float64, string, error) {
	domain := hostOf(rawURL)
	if domain == "" {
		return 0, "", nil
	}
	target := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "http://" + target
	}
	page, err := v.fetch(ctx, target, target)
	if err != nil {
		return 0, "", err
	}
	if !page.OK {
		return 0, "", nil
	}
	nameTokens := v.gen.CoreTokens(name)
	return v.scorer.Score(nameTokens, city, domain, page.Title, page.Text), page.URL, nil
}

// page is the cached essence of a fetched homepage. OK=false is a cached
// negative: the domain answered with something unusable.
type page struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// fetch GETs the target through the cache and the breaker. Candidate scans
// key by domain; search hits key by their full URL.
func (v *Validator) fetch(ctx context.Context, cacheID, target string) (*page, error) {
	key := cache.Key("validate", cacheID)

	var cached page
	if ok, err := cache.GetJSON(ctx, v.store, key, &cached); err == nil && ok {
		return &cached, nil
	}

	p, err := resilience.ExecuteVal(ctx, v.breakers, Provider, func(ctx context.Context) (*page, error) {
		return v.doFetch(ctx, target)
	})
	if err != nil {
		zap.L().Debug("validate: fetch failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}

	if err := cache.PutJSON(ctx, v.store, key, p, v.ttl); err != nil {
		zap.L().Debug("validate: cache write failed", zap.String("url", target), zap.Error(err))
	}
	return p, nil
}

func (v *Validator) doFetch(ctx context.Context, target string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: build request for %s", target)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; enrich/1.0)")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, resilience.Transient(err, 0)
	}
	defer resp.Body.Close()

	if resilience.IsTransientStatus(resp.StatusCode) {
		return nil, resilience.Transient(eris.Errorf("validate: %s returned %d", target, resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return &page{OK: false}, nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return &page{OK: false}, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.Transient(err, 0)
	}

	body := string(raw)
	p := &page{OK: true, URL: resp.Request.URL.String()}
	if m := titleRe.FindStringSubmatch(body); m != nil {
		p.Title = strings.TrimSpace(m[1])
	}
	p.Text = collapseText(tagRe.ReplaceAllString(body, " "))
	return p, nil
}

// collapseText squeezes whitespace and bounds the text kept for scoring.
func collapseText(s string) string {
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if len(out) > 32<<10 {
		out = out[:32<<10]
	}
	return out
}

// hostOf extracts the bare host from a URL-ish string.
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
