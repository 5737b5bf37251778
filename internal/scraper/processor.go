package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

// trackingParams is the set of URL query parameters commonly used for tracking
// that should be stripped during canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"utm_id":       true,
	"fbclid":       true,
	"gclid":        true,
	"msclkid":      true,
	"twclid":       true,
	"ref_src":      true,
	"ref_url":      true,
	"ref":          true,
}

// selfHosts are the platform's own domains; links to them point at other
// posts or profiles rather than external pages.
var selfHosts = map[string]bool{
	"x.com":              true,
	"twitter.com":        true,
	"www.x.com":          true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
	"t.co":               true,
}

// reHTMLTag matches HTML tags.
var reHTMLTag = regexp.MustCompile(`<[^>]*>`)

// reWhitespace matches sequences of whitespace (spaces, tabs, newlines).
var reWhitespace = regexp.MustCompile(`\s+`)

// CleanText strips HTML tags and entities from a meta description and
// collapses whitespace to single spaces.
func CleanText(html string) string {
	if html == "" {
		return ""
	}

	text := reHTMLTag.ReplaceAllString(html, " ")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&apos;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// CanonicalizeURL normalizes a URL by lowercasing the scheme and host,
// removing tracking parameters and the fragment, and sorting the query.
func CanonicalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	parsed.Fragment = ""
	parsed.RawFragment = ""

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}

	query := parsed.Query()
	for key := range query {
		if trackingParams[strings.ToLower(key)] {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// FirstLink returns the canonical form of the first external link in the
// post's entities.urls, or "" when there is none.
func FirstLink(p models.Post) string {
	urls, ok := p.Entities["urls"].([]any)
	if !ok {
		return ""
	}
	for _, item := range urls {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		link, _ := entry["expanded_url"].(string)
		if link == "" {
			link, _ = entry["url"].(string)
		}
		canonical := CanonicalizeURL(link)
		if canonical == "" {
			continue
		}
		parsed, err := url.Parse(canonical)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			continue
		}
		if selfHosts[parsed.Hostname()] {
			continue
		}
		return canonical
	}
	return ""
}
