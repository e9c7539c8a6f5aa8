// Package retrieval fetches documentation referenced by URL in a user
// request so the model sees the page content alongside the request.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/joss/aiops/internal/logging"
)

const (
	maxBodyBytes = 512 * 1024
	maxDocChars  = 16000
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ExtractURLs returns the URLs mentioned in text, in order, deduplicated.
func ExtractURLs(text string) []string {
	raw := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(raw))
	var urls []string
	for _, u := range raw {
		u = strings.TrimRight(u, ".,;:")
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// normalizeURL rewrites GitHub blob pages to their raw form so we fetch
// file content instead of the HTML viewer.
func normalizeURL(u string) string {
	if strings.Contains(u, "github.com") && strings.Contains(u, "/blob/") {
		u = strings.Replace(u, "github.com", "raw.githubusercontent.com", 1)
		u = strings.Replace(u, "/blob/", "/", 1)
	}
	return u
}

// Fetcher retrieves referenced documents over HTTP.
type Fetcher struct {
	client *http.Client
	logger *logging.Logger
}

// NewFetcher creates a fetcher with a bounded per-request timeout.
func NewFetcher(logger *logging.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// NewFetcherWithClient injects a custom HTTP client.
func NewFetcherWithClient(client *http.Client, logger *logging.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// FetchContext extracts every URL from the utterance, fetches each one,
// and returns a context block for the model. Unreachable documents are
// skipped with a warning; an utterance with no URLs returns "".
func (f *Fetcher) FetchContext(ctx context.Context, utterance string) string {
	urls := ExtractURLs(utterance)
	if len(urls) == 0 {
		return ""
	}

	var b strings.Builder
	for _, u := range urls {
		text, err := f.fetch(ctx, u)
		if err != nil {
			f.logger.Warn("fetch_failed", map[string]interface{}{"url": u}, err)
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n", u, text)
	}
	return b.String()
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	target := normalizeURL(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "aiops/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = htmlToText(text)
	}
	if len(text) > maxDocChars {
		text = text[:maxDocChars]
	}
	return text, nil
}

// htmlToText strips markup and returns visible text. Script and style
// bodies are dropped.
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return src
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}
