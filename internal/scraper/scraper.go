// Package scraper fetches preview metadata for links shared in posts.
package scraper

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

const previewTimeout = 10 * time.Second

// Scraper wraps a Colly collector for single-page metadata fetches.
type Scraper struct {
	userAgent string
	timeout   time.Duration
}

// NewScraper creates a new Scraper.
func NewScraper() *Scraper {
	return &Scraper{
		userAgent: "tweetwatch/1.0 (+link preview)",
		timeout:   previewTimeout,
	}
}

// newCollector creates a fresh Colly collector for one page. Each call gets
// its own collector to avoid state leakage.
func (s *Scraper) newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	})

	return c
}

// Preview fetches pageURL and extracts its title, description and image from
// Open Graph tags, falling back to <title> and meta description. It returns
// nil on any failure or when the page carries no usable metadata.
func (s *Scraper) Preview(ctx context.Context, pageURL string) *models.LinkPreview {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c := s.newCollector()

	var (
		mu      sync.Mutex
		meta    = map[string]string{}
		htmlTag string
		failed  bool
	)
	setOnce := func(key, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		mu.Lock()
		if meta[key] == "" {
			meta[key] = value
		}
		mu.Unlock()
	}

	c.OnHTML(`meta[property="og:title"]`, func(e *colly.HTMLElement) { setOnce("og:title", e.Attr("content")) })
	c.OnHTML(`meta[property="og:description"]`, func(e *colly.HTMLElement) { setOnce("og:description", e.Attr("content")) })
	c.OnHTML(`meta[name="description"]`, func(e *colly.HTMLElement) { setOnce("description", e.Attr("content")) })
	c.OnHTML(`meta[property="og:image"]`, func(e *colly.HTMLElement) { setOnce("og:image", e.Attr("content")) })
	c.OnHTML(`meta[name="twitter:image"]`, func(e *colly.HTMLElement) { setOnce("twitter:image", e.Attr("content")) })
	c.OnHTML(`title`, func(e *colly.HTMLElement) {
		mu.Lock()
		if htmlTag == "" {
			htmlTag = strings.TrimSpace(e.Text)
		}
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		failed = true
		mu.Unlock()
		slog.Debug("scraper: preview fetch failed", "url", pageURL, "err", err)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(pageURL); err != nil {
			mu.Lock()
			failed = true
			mu.Unlock()
			slog.Debug("scraper: preview visit failed", "url", pageURL, "err", err)
		}
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-done:
	}

	mu.Lock()
	defer mu.Unlock()
	if failed {
		return nil
	}

	p := &models.LinkPreview{
		URL:         pageURL,
		Title:       firstNonEmpty(meta["og:title"], htmlTag),
		Description: CleanText(firstNonEmpty(meta["og:description"], meta["description"])),
		ImageURL:    firstNonEmpty(meta["og:image"], meta["twitter:image"]),
	}
	if p.Title == "" && p.Description == "" && p.ImageURL == "" {
		return nil
	}

	slog.Debug("scraper: preview", "url", pageURL, "title_len", len(p.Title))
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
