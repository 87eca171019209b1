package citations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Attention Is All You Need</title></head>
<body>
<article>
<h1>Attention Is All You Need</h1>
<p>The dominant sequence transduction models are based on complex recurrent
or convolutional neural networks that include an encoder and a decoder.
The best performing models also connect the encoder and decoder through
an attention mechanism. We propose a new simple network architecture,
the Transformer, based solely on attention mechanisms, dispensing with
recurrence and convolutions entirely.</p>
<p>Experiments on two machine translation tasks show these models to be
superior in quality while being more parallelizable and requiring
significantly less time to train.</p>
</article>
</body>
</html>`

func TestFetcherBuildsContextFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	f := NewFetcher()
	got := f.Context(context.Background(), []string{server.URL})

	require.NotEmpty(t, got)
	assert.Contains(t, got, "Source: "+server.URL)
	assert.Contains(t, got, "attention")
}

func TestFetcherSkipsNonURLCitations(t *testing.T) {
	f := NewFetcher()
	got := f.Context(context.Background(), []string{
		"Vaswani et al. 2017",
		"doi:10.1000/182",
		"ftp://example.org/file",
	})
	assert.Empty(t, got)
}

func TestFetcherCachesPerURL(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	f := NewFetcher()
	first := f.Context(context.Background(), []string{server.URL})
	second := f.Context(context.Background(), []string{server.URL})

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcherCachesFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFetcher()
	assert.Empty(t, f.Context(context.Background(), []string{server.URL}))
	assert.Empty(t, f.Context(context.Background(), []string{server.URL}))

	// The failure was cached; the flaky source is not re-fetched.
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcherTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("<p>A reasonably long paragraph of article prose for the reader.</p>\n", 100)
	page := "<!DOCTYPE html><html><head><title>Long</title></head><body><article><h1>Long</h1>" + long + "</article></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := NewFetcher(WithSnippetRunes(200))
	got := f.Context(context.Background(), []string{server.URL})

	require.NotEmpty(t, got)
	// Source line + snippet; the snippet itself is capped.
	assert.Less(t, len([]rune(got)), 400)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "ab…", truncateRunes("abcdef", 2))
	assert.Equal(t, "abcdef", truncateRunes("abcdef", 0))
}
