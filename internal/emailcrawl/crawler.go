// Package emailcrawl finds a contact email on a facility's resolved
// website: fetch the homepage, follow the most contact-ish internal links
// up to a page budget, extract and rank addresses.
package emailcrawl

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/cache"
	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/resilience"
)

// Provider is the circuit breaker identity for crawl fetches. Crawling hits
// the same arbitrary-site surface as validation, so they share a breaker.
const Provider = "http"

const maxBodyBytes = 512 << 10

var hrefRe = regexp.MustCompile(`(?i)href="([^"#]+)"`)

// contactPaths rank internal links worth visiting, best first.
var contactPaths = []string{
	"contact", "iletisim", "contact-us", "contactus", "kontakt",
	"rezervasyon", "reservation", "booking", "about", "hakkimizda", "impressum",
}

// Crawler fetches pages and extracts the best contact email.
type Crawler struct {
	client   *http.Client
	store    cache.Store
	breakers *resilience.Breakers

	maxPages int
	ttl      time.Duration
}

// New creates a Crawler.
func New(cfg config.EmailConfig, store cache.Store, breakers *resilience.Breakers, ttl time.Duration) *Crawler {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Crawler{
		client:   &http.Client{Timeout: timeout},
		store:    store,
		breakers: breakers,
		maxPages: cfg.MaxPages,
		ttl:      ttl,
	}
	if c.maxPages <= 0 {
		c.maxPages = 10
	}
	return c
}

// WithClient replaces the HTTP client, for tests.
func (c *Crawler) WithClient(hc *http.Client) *Crawler {
	c.client = hc
	return c
}

type crawlResult struct {
	Email string `json:"email"`
}

// Find returns the best contact email for the website, or "" when the site
// yields none. An empty result is a normal outcome, not an error; errors
// are reserved for the site being entirely unreachable.
func (c *Crawler) Find(ctx context.Context, website string) (string, error) {
	base, err := url.Parse(website)
	if err != nil || base.Host == "" {
		return "", eris.Errorf("emailcrawl: unusable website url %q", website)
	}
	siteDomain := strings.TrimPrefix(strings.ToLower(base.Host), "www.")

	key := cache.Key("email", siteDomain)
	var cached crawlResult
	if ok, err := cache.GetJSON(ctx, c.store, key, &cached); err == nil && ok {
		return cached.Email, nil
	}

	home, err := c.fetch(ctx, website)
	if err != nil {
		return "", eris.Wrapf(err, "emailcrawl: fetch homepage %s", website)
	}

	best := ""
	bestScore := -1
	consider := func(body string, onContactPage bool) {
		for _, e := range Extract(body) {
			if s := score(e, siteDomain, onContactPage); s > bestScore {
				best, bestScore = e, s
			}
		}
	}
	consider(home, false)

	visited := map[string]bool{website: true}
	pages := 1
	for _, link := range c.internalLinks(base, home) {
		if pages >= c.maxPages || bestScore >= 90 {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
		if visited[link] {
			continue
		}
		visited[link] = true
		pages++

		body, err := c.fetch(ctx, link)
		if err != nil {
			zap.L().Debug("emailcrawl: page fetch failed", zap.String("url", link), zap.Error(err))
			continue
		}
		consider(body, isContactPath(link))
	}

	if err := cache.PutJSON(ctx, c.store, key, crawlResult{Email: best}, c.ttl); err != nil {
		zap.L().Debug("emailcrawl: cache write failed", zap.String("domain", siteDomain), zap.Error(err))
	}

	zap.L().Debug("emailcrawl: crawl complete",
		zap.String("domain", siteDomain),
		zap.Int("pages", pages),
		zap.Bool("found", best != ""),
	)
	return best, nil
}

func (c *Crawler) fetch(ctx context.Context, rawURL string) (string, error) {
	return resilience.ExecuteVal(ctx, c.breakers, Provider, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", eris.Wrapf(err, "emailcrawl: build request %s", rawURL)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; enrich/1.0)")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", resilience.Transient(err, 0)
		}
		defer resp.Body.Close()

		if resilience.IsTransientStatus(resp.StatusCode) {
			return "", resilience.Transient(eris.Errorf("emailcrawl: %s returned %d", rawURL, resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return "", eris.Errorf("emailcrawl: %s returned %d", rawURL, resp.StatusCode)
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return "", resilience.Transient(err, 0)
		}
		return string(raw), nil
	})
}

// internalLinks extracts same-host links from the homepage, contact-ish
// paths first, deduplicated.
func (c *Crawler) internalLinks(base *url.URL, body string) []string {
	seen := make(map[string]bool)
	var ranked, rest []string

	for _, m := range hrefRe.FindAllStringSubmatch(body, -1) {
		ref, err := url.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		u := base.ResolveReference(ref)
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if !strings.EqualFold(strings.TrimPrefix(u.Host, "www."), strings.TrimPrefix(base.Host, "www.")) {
			continue
		}
		u.Fragment = ""
		s := u.String()
		if seen[s] {
			continue
		}
		seen[s] = true

		if isContactPath(s) {
			ranked = append(ranked, s)
		} else {
			rest = append(rest, s)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return contactRank(ranked[i]) < contactRank(ranked[j])
	})
	return append(ranked, rest...)
}

func isContactPath(rawURL string) bool {
	return contactRank(rawURL) < len(contactPaths)
}

func contactRank(rawURL string) int {
	lower := strings.ToLower(rawURL)
	for i, p := range contactPaths {
		if strings.Contains(lower, p) {
			return i
		}
	}
	return len(contactPaths)
}
