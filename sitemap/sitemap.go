// Package sitemap accumulates the records a crawl discovers and writes
// them out as YAML or JSON.
package sitemap

import (
	"sync"

	"github.com/will-x86/sitemapper"
)

// Sitemap is the append-only record list shared by every worker. Appends
// are serialized through one mutex, so record order is stable within a
// page even when workers interleave.
type Sitemap struct {
	mu      sync.Mutex
	records []sitemapper.Tag
}

func New() *Sitemap {
	return &Sitemap{}
}

// Add appends tags in the given order.
func (s *Sitemap) Add(tags ...sitemapper.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, tags...)
}

// Records returns a copy of the accumulated records.
func (s *Sitemap) Records() []sitemapper.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]sitemapper.Tag, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Sitemap) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
