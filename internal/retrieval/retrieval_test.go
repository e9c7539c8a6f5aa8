package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/aiops/internal/logging"
)

func TestExtractURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "no urls",
			text: "install kubernetes on this box",
			want: nil,
		},
		{
			name: "single url with trailing punctuation",
			text: "follow https://example.com/guide.",
			want: []string{"https://example.com/guide"},
		},
		{
			name: "deduplicated in order",
			text: "see http://a.io and https://b.io, then http://a.io again",
			want: []string{"http://a.io", "https://b.io"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractURLs(tt.text))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got := normalizeURL("https://github.com/org/repo/blob/main/setup.sh")
	assert.Equal(t, "https://raw.githubusercontent.com/org/repo/main/setup.sh", got)

	// Non-blob URLs pass through unchanged.
	plain := "https://example.com/doc"
	assert.Equal(t, plain, normalizeURL(plain))
}

func TestFetchContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("plain doc content"))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><head><script>var x=1;</script></head><body><p>visible text</p></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(logging.New("retrieval"))

	out := f.FetchContext(context.Background(), "read "+srv.URL+"/plain and "+srv.URL+"/page")
	assert.Contains(t, out, "plain doc content")
	assert.Contains(t, out, "visible text")
	assert.NotContains(t, out, "var x=1", "script bodies are dropped")
	assert.Contains(t, out, srv.URL+"/plain", "each document is labeled with its url")
}

func TestFetchContextSkipsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.Write([]byte("good doc"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(logging.New("retrieval"))
	out := f.FetchContext(context.Background(), srv.URL+"/missing then "+srv.URL+"/ok")

	assert.Contains(t, out, "good doc")
	assert.NotContains(t, out, "/missing ---")
}

func TestFetchContextNoURLs(t *testing.T) {
	f := NewFetcher(logging.New("retrieval"))
	require.Empty(t, f.FetchContext(context.Background(), "no links here"))
}
