// Package seen tracks which URLs a crawl has already admitted to the
// frontier, so every page is scheduled at most once.
package seen

import "context"

// Set is a deduplication set over normalized URLs.
type Set interface {
	// MarkIfNew records url and reports whether this call was the first
	// to do so. When several workers race on the same url, exactly one
	// of them observes true.
	MarkIfNew(ctx context.Context, url string) (bool, error)

	// Len reports how many distinct URLs have been marked.
	Len(ctx context.Context) (int, error)

	Close() error
}
