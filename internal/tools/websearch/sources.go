package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/haasonsaas/pathfinder/internal/backoff"
	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/internal/ratelimit"
)

// Source is one search backend. Search returns a plain-text result blob; an
// empty blob with a nil error means "nothing found".
type Source interface {
	Name() string
	Search(ctx context.Context, query string) (string, error)
}

const (
	userAgent = "Mozilla/5.0 (compatible; pathfinder/1.0)"
	// maxHits caps the hits rendered into a result blob.
	maxHits = 5
	// maxBodyBytes caps source response bodies.
	maxBodyBytes = 4 << 20
)

// SourceOptions carries shared HTTP plumbing for sources.
type SourceOptions struct {
	// HTTPClient defaults to a client with config.SearchConfig.Timeout.
	HTTPClient *http.Client
	// RetryPolicy is applied after HTTP 429. Default: backoff.RateLimitPolicy.
	RetryPolicy *backoff.Policy
	// MaxAttempts bounds 429 retries per call. Default: 3.
	MaxAttempts int
	// LiteLimiter paces duckduckgo_lite. Default: 1 request per second.
	LiteLimiter *ratelimit.Limiter
	Logger      *slog.Logger
}

// httpFetcher issues source requests and retries rate-limited ones.
type httpFetcher struct {
	client      *http.Client
	policy      backoff.Policy
	maxAttempts int
}

func newHTTPFetcher(opts SourceOptions, timeout time.Duration) *httpFetcher {
	client := opts.HTTPClient
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	policy := backoff.RateLimitPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &httpFetcher{client: client, policy: policy, maxAttempts: attempts}
}

var errRateLimited = errors.New("rate limited")

// do runs build+send, retrying only HTTP 429. Any other non-200 status is a
// *SourceError.
func (f *httpFetcher) do(ctx context.Context, source, query string, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	res, err := backoff.Retry(ctx, f.policy, f.maxAttempts, func(ctx context.Context, _ int) ([]byte, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, backoff.Permanent(&SourceError{Source: source, Query: query, Cause: err})
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(&SourceError{Source: source, Query: query, Cause: err})
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &SourceError{Source: source, Query: query, Status: resp.StatusCode, Cause: errRateLimited}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(&SourceError{Source: source, Query: query, Status: resp.StatusCode})
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, backoff.Permanent(&SourceError{Source: source, Query: query, Cause: fmt.Errorf("read response: %w", err)})
		}
		return body, nil
	})
	if err != nil {
		var srcErr *SourceError
		if errors.As(err, &srcErr) {
			return nil, srcErr
		}
		return nil, &SourceError{Source: source, Query: query, Cause: err}
	}
	return res.Value, nil
}

type hit struct {
	Title   string
	URL     string
	Snippet string
}

// renderHits formats hits as numbered "title: snippet (url)" lines.
func renderHits(hits []hit) string {
	var b strings.Builder
	n := 0
	for _, h := range hits {
		title := strings.TrimSpace(h.Title)
		snippet := strings.TrimSpace(h.Snippet)
		if title == "" && snippet == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s", n, title)
		if snippet != "" {
			if title != "" {
				b.WriteString(": ")
			}
			b.WriteString(snippet)
		}
		if h.URL != "" {
			fmt.Fprintf(&b, " (%s)", h.URL)
		}
		b.WriteString("\n")
		if n == maxHits {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// DuckDuckGo queries the Instant Answer API.
type DuckDuckGo struct {
	endpoint string
	fetcher  *httpFetcher
}

func (d *DuckDuckGo) Name() string { return config.SourceDuckDuckGo }

func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	body, err := d.fetcher.do(ctx, d.Name(), query, func(ctx context.Context) (*http.Request, error) {
		u, err := url.Parse(d.endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid DuckDuckGo URL: %w", err)
		}
		q := u.Query()
		q.Set("q", query)
		q.Set("format", "json")
		q.Set("no_html", "1")
		q.Set("skip_disambig", "1")
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Answer         string `json:"Answer"`
		AbstractText   string `json:"AbstractText"`
		AbstractSource string `json:"AbstractSource"`
		AbstractURL    string `json:"AbstractURL"`
		Heading        string `json:"Heading"`
		Definition     string `json:"Definition"`
		RelatedTopics  []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &SourceError{Source: d.Name(), Query: query, Cause: fmt.Errorf("parse response: %w", err)}
	}

	var hits []hit
	if resp.Answer != "" {
		hits = append(hits, hit{Title: resp.Heading, Snippet: resp.Answer})
	}
	if resp.AbstractText != "" {
		hits = append(hits, hit{Title: resp.Heading, URL: resp.AbstractURL, Snippet: resp.AbstractText})
	}
	if resp.Definition != "" {
		hits = append(hits, hit{Title: resp.Heading, Snippet: resp.Definition})
	}
	for _, t := range resp.RelatedTopics {
		if t.Text != "" {
			hits = append(hits, hit{URL: t.FirstURL, Snippet: t.Text})
		}
	}
	return renderHits(hits), nil
}

// DuckDuckGoLite scrapes the lite HTML results page.
type DuckDuckGoLite struct {
	endpoint string
	fetcher  *httpFetcher
	limiter  *ratelimit.Limiter
}

func (d *DuckDuckGoLite) Name() string { return config.SourceDuckDuckGoLite }

func (d *DuckDuckGoLite) Search(ctx context.Context, query string) (string, error) {
	if err := d.limiter.Wait(ctx, d.Name()); err != nil {
		return "", &SourceError{Source: d.Name(), Query: query, Cause: err}
	}
	form := url.Values{}
	form.Set("q", query)
	body, err := d.fetcher.do(ctx, d.Name(), query, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	hits, err := parseLiteResults(body)
	if err != nil {
		return "", &SourceError{Source: d.Name(), Query: query, Cause: err}
	}
	return renderHits(hits), nil
}

// parseLiteResults pairs each result-link anchor with the next
// result-snippet cell.
func parseLiteResults(body []byte) ([]hit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	var hits []hit
	doc.Find("a.result-link").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		hits = append(hits, hit{Title: strings.TrimSpace(s.Text()), URL: resolveLiteHref(href)})
	})
	doc.Find("td.result-snippet").Each(func(i int, s *goquery.Selection) {
		if i < len(hits) {
			hits[i].Snippet = strings.Join(strings.Fields(s.Text()), " ")
		}
	})
	return hits, nil
}

// resolveLiteHref unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveLiteHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// SearXNG queries a SearXNG instance's JSON API.
type SearXNG struct {
	baseURL string
	fetcher *httpFetcher
}

func (s *SearXNG) Name() string { return config.SourceSearXNG }

func (s *SearXNG) Search(ctx context.Context, query string) (string, error) {
	body, err := s.fetcher.do(ctx, s.Name(), query, func(ctx context.Context) (*http.Request, error) {
		u, err := url.Parse(s.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid SearXNG URL: %w", err)
		}
		q := url.Values{}
		q.Set("q", query)
		q.Set("format", "json")
		q.Set("pageno", "1")
		q.Set("categories", "general")
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Answers []string `json:"answers"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &SourceError{Source: s.Name(), Query: query, Cause: fmt.Errorf("parse response: %w", err)}
	}
	var hits []hit
	for _, a := range resp.Answers {
		hits = append(hits, hit{Snippet: a})
	}
	for _, r := range resp.Results {
		hits = append(hits, hit{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return renderHits(hits), nil
}

// Brave queries the Brave Search web API.
type Brave struct {
	endpoint string
	apiKey   string
	fetcher  *httpFetcher
}

func (b *Brave) Name() string { return config.SourceBrave }

func (b *Brave) Search(ctx context.Context, query string) (string, error) {
	body, err := b.fetcher.do(ctx, b.Name(), query, func(ctx context.Context) (*http.Request, error) {
		u, err := url.Parse(b.endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid Brave URL: %w", err)
		}
		q := u.Query()
		q.Set("q", query)
		q.Set("count", strconv.Itoa(maxHits))
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.apiKey)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &SourceError{Source: b.Name(), Query: query, Cause: fmt.Errorf("parse response: %w", err)}
	}
	hits := make([]hit, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		hits = append(hits, hit{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return renderHits(hits), nil
}

// NewSources builds the configured sources in order. searxng is skipped
// without a URL and brave without an API key.
func NewSources(cfg config.SearchConfig, opts SourceOptions) []Source {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := newHTTPFetcher(opts, cfg.Timeout)
	limiter := opts.LiteLimiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})
	}

	var sources []Source
	for _, name := range cfg.Sources {
		switch name {
		case config.SourceDuckDuckGo:
			sources = append(sources, &DuckDuckGo{endpoint: cfg.DuckDuckGoURL, fetcher: fetcher})
		case config.SourceDuckDuckGoLite:
			sources = append(sources, &DuckDuckGoLite{endpoint: cfg.DuckDuckGoLiteURL, fetcher: fetcher, limiter: limiter})
		case config.SourceSearXNG:
			if cfg.SearXNGURL == "" {
				logger.Debug("search source skipped", "source", name, "reason", "no searxng_url")
				continue
			}
			sources = append(sources, &SearXNG{baseURL: cfg.SearXNGURL, fetcher: fetcher})
		case config.SourceBrave:
			if cfg.BraveAPIKey == "" {
				logger.Debug("search source skipped", "source", name, "reason", "no brave_api_key")
				continue
			}
			sources = append(sources, &Brave{endpoint: cfg.BraveURL, apiKey: cfg.BraveAPIKey, fetcher: fetcher})
		default:
			logger.Warn("unknown search source ignored", "source", name)
		}
	}
	return sources
}
