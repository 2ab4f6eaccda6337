// Package crawl runs the worker pool that drives a crawl: workers pull
// URLs from a scheduler, fetch and parse pages, feed newly discovered
// links back to the frontier, and accumulate the sitemap.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/will-x86/sitemapper"
	"github.com/will-x86/sitemapper/extract"
	"github.com/will-x86/sitemapper/logger"
	"github.com/will-x86/sitemapper/scheduler"
	"github.com/will-x86/sitemapper/seen"
	"github.com/will-x86/sitemapper/sitemap"
)

type Options struct {
	Scheduler scheduler.Scheduler // required
	Seen      seen.Set            // required
	Fetcher   sitemapper.Fetcher  // required

	// Extractor defaults to the a+img tag extractor.
	Extractor sitemapper.Extractor

	Workers  int // default 3
	MaxPages int // fetch budget; 0 means unlimited
	MaxDepth int // links deeper than this are not followed; 0 means unlimited

	// Scope defaults to the seeds' own sites (see ScopeSeeds). Pass
	// ScopeAll for an unrestricted crawl.
	Scope Scope

	RateLimiter RateLimiter
	Logger      logger.Logger
}

// Stats is a point-in-time snapshot of crawl counters.
type Stats struct {
	PagesFetched  int64
	PagesFailed   int64
	LinksFound    int64
	LinksEnqueued int64
}

// Crawler owns the worker pool for one crawl. Construct a fresh Crawler
// per Run; it keeps counters and scope state across a single crawl only.
type Crawler struct {
	scheduler   scheduler.Scheduler
	seen        seen.Set
	fetcher     sitemapper.Fetcher
	extractor   sitemapper.Extractor
	workers     int
	maxPages    int
	maxDepth    int
	scope       Scope
	rateLimiter RateLimiter
	logger      logger.Logger

	started  atomic.Int64
	fetched  atomic.Int64
	failed   atomic.Int64
	found    atomic.Int64
	enqueued atomic.Int64
}

func New(opts Options) (*Crawler, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("a scheduler is required")
	}
	if opts.Seen == nil {
		return nil, errors.New("a seen set is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("a fetcher is required")
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.NewTagExtractor(extract.Options{})
	}
	if opts.Workers == 0 {
		opts.Workers = 3
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = NoRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}

	return &Crawler{
		scheduler:   opts.Scheduler,
		seen:        opts.Seen,
		fetcher:     opts.Fetcher,
		extractor:   opts.Extractor,
		workers:     opts.Workers,
		maxPages:    opts.MaxPages,
		maxDepth:    opts.MaxDepth,
		scope:       opts.Scope,
		rateLimiter: opts.RateLimiter,
		logger:      opts.Logger,
	}, nil
}

// Run crawls from the seeds until the frontier drains, ctx is cancelled,
// or a scheduler failure makes progress impossible. The returned sitemap
// holds whatever was gathered, even when err is non-nil.
func (c *Crawler) Run(ctx context.Context, seeds ...string) (*sitemap.Sitemap, error) {
	sm := sitemap.New()
	if len(seeds) == 0 {
		return sm, errors.New("at least one seed URL is required")
	}

	normalized := make([]string, 0, len(seeds))
	for _, s := range seeds {
		n, err := sitemapper.NormalizeURL(s)
		if err != nil {
			return sm, fmt.Errorf("invalid seed %s: %w", s, err)
		}
		normalized = append(normalized, n)
	}

	if c.scope == nil {
		scope, err := ScopeSeeds(normalized...)
		if err != nil {
			return sm, err
		}
		c.scope = scope
	}
	defer c.rateLimiter.Close()

	// Seeds already marked by an earlier run stay out of the frontier;
	// on a resumed crawl the scheduler still holds their descendants.
	for _, s := range normalized {
		first, err := c.seen.MarkIfNew(ctx, s)
		if err != nil {
			return sm, fmt.Errorf("failed to mark seed %s: %w", s, err)
		}
		if !first {
			continue
		}
		if err := c.scheduler.Enqueue(ctx, scheduler.Item{URL: s}); err != nil {
			return sm, fmt.Errorf("failed to enqueue seed %s: %w", s, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		i := i
		g.Go(func() error {
			return c.worker(gctx, i, sm)
		})
	}
	err := g.Wait()

	stats := c.Stats()
	c.logger.Info("Crawl finished: %d pages fetched, %d failed, %d links found, %d enqueued",
		stats.PagesFetched, stats.PagesFailed, stats.LinksFound, stats.LinksEnqueued)

	return sm, err
}

func (c *Crawler) worker(ctx context.Context, id int, sm *sitemap.Sitemap) error {
	for {
		item, err := c.scheduler.Dequeue(ctx)
		if err == io.EOF {
			c.logger.Debug("Worker %d: frontier drained", id)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The frontier is unreachable; no worker can make progress.
			return fmt.Errorf("worker %d failed to dequeue: %w", id, err)
		}

		if err := c.process(ctx, id, item, sm); err != nil {
			return err
		}
	}
}

func (c *Crawler) process(ctx context.Context, id int, item scheduler.Item, sm *sitemap.Sitemap) error {
	if c.maxPages > 0 && c.started.Add(1) > int64(c.maxPages) {
		// Budget spent: finish this item unfetched and empty the
		// frontier so the crawl winds down.
		if err := c.scheduler.Drain(ctx); err != nil {
			return fmt.Errorf("failed to drain frontier: %w", err)
		}
		return c.done(ctx, item)
	}

	pageURL, err := url.Parse(item.URL)
	if err != nil {
		c.logger.Error("Worker %d: invalid URL %s: %v", id, item.URL, err)
		c.failed.Add(1)
		return c.done(ctx, item)
	}

	if err := c.rateLimiter.Wait(ctx, pageURL.Host); err != nil {
		if derr := c.done(ctx, item); derr != nil {
			return derr
		}
		return err
	}

	c.logger.Debug("Worker %d: crawling %s (depth %d)", id, item.URL, item.Depth)

	body, err := c.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		if ctx.Err() != nil {
			if derr := c.done(ctx, item); derr != nil {
				return derr
			}
			return ctx.Err()
		}
		c.logger.Warn("Worker %d: failed to fetch %s: %v", id, item.URL, err)
		c.failed.Add(1)
		return c.done(ctx, item)
	}
	c.fetched.Add(1)

	tags, err := c.extractor.Extract(body, pageURL)
	if err != nil {
		c.logger.Warn("Worker %d: failed to parse %s: %v", id, item.URL, err)
		c.failed.Add(1)
		return c.done(ctx, item)
	}

	// Every record joins the sitemap; scope and the seen set only gate
	// what reaches the frontier.
	sm.Add(tags...)
	c.found.Add(int64(len(tags)))

	for _, tag := range tags {
		// Only anchors are followed; img and other records are sitemap
		// entries, not pages.
		if tag.Name != "a" {
			continue
		}
		if err := c.enqueue(ctx, tag.URL, item.Depth+1); err != nil {
			return err
		}
	}

	return c.done(ctx, item)
}

func (c *Crawler) enqueue(ctx context.Context, rawURL string, depth int) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		c.logger.Debug("Skipping unparsable link %s: %v", rawURL, err)
		return nil
	}
	if !c.scope.InScope(target) {
		return nil
	}
	if c.maxDepth > 0 && depth > c.maxDepth {
		return nil
	}

	first, err := c.seen.MarkIfNew(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("failed to mark %s: %w", rawURL, err)
	}
	if !first {
		return nil
	}

	if err := c.scheduler.Enqueue(ctx, scheduler.Item{URL: rawURL, Depth: depth}); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", rawURL, err)
	}
	c.enqueued.Add(1)
	return nil
}

// done marks item finished. Failing to do so is fatal: the drain
// protocol depends on every dequeued item being returned.
func (c *Crawler) done(ctx context.Context, item scheduler.Item) error {
	if err := c.scheduler.TaskDone(ctx, item); err != nil {
		return fmt.Errorf("failed to mark %s done: %w", item.URL, err)
	}
	return nil
}

func (c *Crawler) Stats() Stats {
	return Stats{
		PagesFetched:  c.fetched.Load(),
		PagesFailed:   c.failed.Load(),
		LinksFound:    c.found.Load(),
		LinksEnqueued: c.enqueued.Load(),
	}
}
