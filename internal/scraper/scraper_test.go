package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

func TestPreviewOpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head>
			<title>Fallback Title</title>
			<meta property="og:title" content="Launch Day">
			<meta property="og:description" content="We &amp; our   partners shipped.">
			<meta name="twitter:image" content="https://cdn.example.com/card.png">
		</head><body>hi</body></html>`))
	}))
	defer srv.Close()

	p := NewScraper().Preview(context.Background(), srv.URL)
	require.NotNil(t, p)
	require.Equal(t, srv.URL, p.URL)
	require.Equal(t, "Launch Day", p.Title)
	require.Equal(t, "We & our partners shipped.", p.Description)
	require.Equal(t, "https://cdn.example.com/card.png", p.ImageURL)
}

func TestPreviewFallsBackToTitleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> Plain Page </title><meta name="description" content="desc"></head></html>`))
	}))
	defer srv.Close()

	p := NewScraper().Preview(context.Background(), srv.URL)
	require.NotNil(t, p)
	require.Equal(t, "Plain Page", p.Title)
	require.Equal(t, "desc", p.Description)
}

func TestPreviewFailures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	require.Nil(t, NewScraper().Preview(context.Background(), notFound.URL))

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>nothing here</body></html>`))
	}))
	defer empty.Close()
	require.Nil(t, NewScraper().Preview(context.Background(), empty.URL))

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer slow.Close()
	s := NewScraper()
	s.timeout = 50 * time.Millisecond
	require.Nil(t, s.Preview(context.Background(), slow.URL))
}

func TestCanonicalizeURL(t *testing.T) {
	require.Equal(t, "https://example.com/a?id=3",
		CanonicalizeURL("HTTPS://Example.com/a/?utm_source=tw&id=3&fbclid=x#frag"))
	require.Equal(t, "", CanonicalizeURL("  "))
}

func TestFirstLink(t *testing.T) {
	p := models.Post{Entities: map[string]any{"urls": []any{
		map[string]any{"expanded_url": "https://x.com/bob/status/1"},
		"garbage",
		map[string]any{"expanded_url": "https://news.example.com/story?utm_medium=social"},
		map[string]any{"expanded_url": "https://other.example.com"},
	}}}
	require.Equal(t, "https://news.example.com/story", FirstLink(p))

	require.Equal(t, "", FirstLink(models.Post{Entities: map[string]any{}}))
	require.Equal(t, "", FirstLink(models.Post{Entities: map[string]any{"urls": []any{
		map[string]any{"url": "ftp://files.example.com/x"},
	}}}))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b & c", CleanText("<p>a</p>\n<b>b</b> &amp; c"))
	require.Equal(t, "", CleanText(""))
}
