package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Fetch Test</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Fetch Test</h1>
<p>Hello from fetch. This paragraph is the main content of the page and it is long enough to be kept by the readability scoring.</p>
<p>A second paragraph adds more words, commas, and sentences, so the article container clearly outranks the navigation block.</p>
<p>A third paragraph finishes the article with a short conclusion about fetching pages and extracting their text.</p>
</article>
<footer>Copyright footer</footer>
</body>
</html>`

func testExtractor() *ContentExtractor {
	e := NewContentExtractor(0)
	e.skipSSRFCheck = true
	return e
}

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fetchParams(t *testing.T, url string, maxChars int) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(FetchParams{URL: url, MaxChars: maxChars})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestWebFetchToolExtractsArticle(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", articleHTML)
	tool := NewWebFetchTool(FetchConfig{MaxChars: 2000}, WithExtractor(testExtractor()))

	res, err := tool.Execute(context.Background(), fetchParams(t, srv.URL, 0))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "Hello from fetch") || !strings.Contains(res.Content, "Title: Fetch Test") {
		t.Fatalf("content = %q", res.Content)
	}
	if strings.Contains(res.Content, "[truncated]") {
		t.Fatal("short article marked truncated")
	}
}

func TestWebFetchToolTruncates(t *testing.T) {
	srv := serve(t, "text/plain", strings.Repeat("A", 200))
	tool := NewWebFetchTool(FetchConfig{MaxChars: 100}, WithExtractor(testExtractor()))

	res, err := tool.Execute(context.Background(), fetchParams(t, srv.URL, 50))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, strings.Repeat("A", 50)+"...") || strings.Contains(res.Content, strings.Repeat("A", 51)) {
		t.Fatalf("content not truncated to 50: %q", res.Content)
	}
	if !strings.HasSuffix(res.Content, "[truncated]") {
		t.Fatalf("missing truncation marker: %q", res.Content)
	}
}

func TestWebFetchToolErrors(t *testing.T) {
	pdf := serve(t, "application/pdf", "%PDF-1.4")
	tool := NewWebFetchTool(FetchConfig{}, WithExtractor(testExtractor()))

	for _, raw := range []json.RawMessage{
		json.RawMessage(`{"url":""}`),
		json.RawMessage(`not json`),
		fetchParams(t, pdf.URL, 0),
	} {
		res, err := tool.Execute(context.Background(), raw)
		if err != nil {
			t.Fatalf("Execute(%s) returned error %v", raw, err)
		}
		if !res.IsError {
			t.Fatalf("Execute(%s) = %q, want error result", raw, res.Content)
		}
	}
}

func TestValidateURLBlocksPrivateHosts(t *testing.T) {
	e := NewContentExtractor(0)
	e.lookupIP = func(host string) ([]net.IP, error) {
		switch host {
		case "intranet.example":
			return []net.IP{net.ParseIP("192.168.1.5")}, nil
		case "public.example":
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		}
		return nil, errors.New("no such host")
	}

	blocked := []string{
		"http://127.0.0.1:8080/",
		"http://localhost/x",
		"http://api.localhost/",
		"http://10.0.0.1/",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/",
		"http://intranet.example/",
		"file:///etc/passwd",
		"ftp://public.example/",
		"http:///nohost",
	}
	for _, u := range blocked {
		if _, err := e.validateURL(u); err == nil {
			t.Errorf("validateURL(%q) allowed", u)
		}
	}
	for _, u := range []string{"https://public.example/page", "https://unresolvable.example/"} {
		if _, err := e.validateURL(u); err != nil {
			t.Errorf("validateURL(%q) = %v", u, err)
		}
	}
}
