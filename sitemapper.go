// Package sitemapper crawls web sites and collects the link and resource
// tags of every fetched page into a sitemap.
//
// The root package holds the shared vocabulary: the Tag record emitted for
// every collected link, the Fetcher and Extractor collaborator interfaces,
// and URL normalization. The crawl engine itself lives in the crawl package,
// frontier backends in scheduler, and dedup state in seen.
package sitemapper

import (
	"context"
	"net/url"
)

// Tag is one collected link record: the tag name as it appeared in the
// HTML, the absolute normalized URL it points at, and the tag's raw
// attributes.
type Tag struct {
	Name  string            `json:"name" yaml:"name"`
	URL   string            `json:"url" yaml:"url"`
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Fetcher retrieves the content of a single page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// Extractor parses fetched content and returns the link records found in
// it, with URLs resolved to absolute form against base. Each call parses
// from scratch; implementations keep no cross-call state.
type Extractor interface {
	Extract(body []byte, base *url.URL) ([]Tag, error)
}
