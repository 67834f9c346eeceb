package websearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Page is the readable content of a fetched URL.
type Page struct {
	URL     string
	Title   string
	Byline  string
	Excerpt string
	Text    string
}

// ContentExtractor fetches pages and extracts their main text.
type ContentExtractor struct {
	httpClient    *http.Client
	skipSSRFCheck bool // tests only: allows loopback URLs
	lookupIP      func(host string) ([]net.IP, error)
}

// NewContentExtractor creates a content extractor.
func NewContentExtractor(timeout time.Duration) *ContentExtractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ContentExtractor{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after %d redirects", len(via))
				}
				return nil
			},
		},
		lookupIP: net.LookupIP,
	}
}

// isPrivateOrReservedIP checks if an IP address is private, loopback, or reserved.
func isPrivateOrReservedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsMulticast()
}

// validateURL rejects non-http(s) URLs and hosts that are, or resolve to,
// private or reserved addresses.
func (e *ContentExtractor) validateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("URL must have a hostname")
	}
	if e.skipSSRFCheck {
		return parsed, nil
	}

	lowerHost := strings.ToLower(hostname)
	if lowerHost == "localhost" || strings.HasSuffix(lowerHost, ".localhost") {
		return nil, fmt.Errorf("localhost URLs are not allowed")
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateOrReservedIP(ip) {
			return nil, fmt.Errorf("URL points to a private or reserved address")
		}
		return parsed, nil
	}
	ips, err := e.lookupIP(hostname)
	if err != nil {
		// DNS may be handled by a proxy.
		return parsed, nil
	}
	for _, ip := range ips {
		if isPrivateOrReservedIP(ip) {
			return nil, fmt.Errorf("URL resolves to a private or reserved address")
		}
	}
	return parsed, nil
}

// Extract fetches targetURL and returns its readable content. Plain-text
// responses are returned as-is.
func (e *ContentExtractor) Extract(ctx context.Context, targetURL string) (*Page, error) {
	parsed, err := e.validateURL(targetURL)
	if err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml")
	if !isHTML && !strings.Contains(contentType, "text/plain") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{URL: parsed.String()}
	if !isHTML {
		page.Text = strings.TrimSpace(string(body))
		return page, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	page.Title = strings.TrimSpace(article.Title)
	page.Byline = strings.TrimSpace(article.Byline)
	page.Excerpt = strings.TrimSpace(article.Excerpt)
	page.Text = cleanText(article.TextContent)
	return page, nil
}

// cleanText collapses runs of blank lines and trims every line.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
