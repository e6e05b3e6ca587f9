package search

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/lodgeleads/enrich/internal/resilience"
	"github.com/lodgeleads/enrich/pkg/ddg"
	"github.com/lodgeleads/enrich/pkg/perplexity"
)

// Hit is a provider result before validation.
type Hit struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Provider produces candidate websites for a facility via an external
// service. Implementations return transient-classified errors so the breaker
// and retry layers can tell provider faults from empty results.
type Provider interface {
	Name() string
	Find(ctx context.Context, queries []string, max int) ([]Hit, error)
}

// DDGProvider runs each query against the DuckDuckGo HTML endpoint until
// one returns hits.
type DDGProvider struct {
	client ddg.Client
}

// NewDDGProvider wraps a ddg client as a Provider.
func NewDDGProvider(client ddg.Client) *DDGProvider {
	return &DDGProvider{client: client}
}

func (p *DDGProvider) Name() string { return "ddg" }

func (p *DDGProvider) Find(ctx context.Context, queries []string, max int) ([]Hit, error) {
	for _, q := range queries {
		results, err := p.client.Search(ctx, q, max)
		if err != nil {
			return nil, classify(err)
		}
		if len(results) == 0 {
			continue
		}
		hits := make([]Hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, Hit{URL: r.URL, Title: r.Title})
		}
		return hits, nil
	}
	return nil, nil
}

const lookupSystem = "You identify official websites of lodging businesses. " +
	"Answer with the single official website URL and nothing else. " +
	"If you are not confident, answer NONE."

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// PerplexityProvider asks the AI API for the official website directly.
// Only the first query (the most specific one) is used.
type PerplexityProvider struct {
	client perplexity.Client
}

// NewPerplexityProvider wraps a perplexity client as a Provider.
func NewPerplexityProvider(client perplexity.Client) *PerplexityProvider {
	return &PerplexityProvider{client: client}
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

func (p *PerplexityProvider) Find(ctx context.Context, queries []string, _ int) ([]Hit, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	answer, err := p.client.Ask(ctx, lookupSystem, "Official website of: "+queries[0])
	if err != nil {
		return nil, classify(err)
	}
	if strings.Contains(strings.ToUpper(answer), "NONE") {
		return nil, nil
	}

	var hits []Hit
	for _, u := range urlRe.FindAllString(answer, 3) {
		hits = append(hits, Hit{URL: strings.TrimRight(u, ".,;")})
	}
	return hits, nil
}

// classify promotes HTTP status errors from the pkg clients to transient
// when the status is retryable, so they feed breaker and retry correctly.
func classify(err error) error {
	var ddgErr *ddg.StatusError
	if errors.As(err, &ddgErr) && resilience.IsTransientStatus(ddgErr.Code) {
		return resilience.Transient(err, ddgErr.Code)
	}
	var pplxErr *perplexity.StatusError
	if errors.As(err, &pplxErr) && resilience.IsTransientStatus(pplxErr.Code) {
		return resilience.Transient(err, pplxErr.Code)
	}
	return err
}
