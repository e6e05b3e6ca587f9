// Package ddg is a minimal client for the DuckDuckGo HTML endpoint. The
// endpoint has no API key and no JSON surface, so results are pulled out of
// the served HTML.
package ddg

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://html.duckduckgo.com"

// Client performs keyword searches.
type Client interface {
	Search(ctx context.Context, query string, max int) ([]Result, error)
}

// Result is a single organic search hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// StatusError reports a non-200 response from the endpoint. Callers decide
// whether the code warrants a retry.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ddg: unexpected status %d", e.Code)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default endpoint base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a DuckDuckGo HTML client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var (
	anchorRe = regexp.MustCompile(`(?is)<a[^>]+class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
)

func (c *httpClient) Search(ctx context.Context, query string, max int) ([]Result, error) {
	if max <= 0 {
		max = 10
	}

	endpoint := c.baseURL + "/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ddg: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ddg: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ddg: read response")
	}

	var results []Result
	for _, m := range anchorRe.FindAllStringSubmatch(string(body), -1) {
		u := decodeHref(html.UnescapeString(m[1]))
		if u == "" {
			continue
		}
		title := strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(m[2], "")))
		results = append(results, Result{URL: u, Title: title})
		if len(results) >= max {
			break
		}
	}
	return results, nil
}

// decodeHref resolves DuckDuckGo's redirect links. Organic hits come back as
// //duckduckgo.com/l/?uddg=<escaped target>; direct links pass through.
func decodeHref(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			href = decoded
		} else {
			href = target
		}
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}
