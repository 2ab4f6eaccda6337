package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/will-x86/sitemapper/logger"
)

type BrowserOptions struct {
	Headless bool
	Timeout  time.Duration // per-page render budget, default 30s
	Logger   logger.Logger
}

// BrowserFetcher renders pages in headless Chrome before handing the DOM
// to the extractor, so links inserted by scripts are crawled too. One
// browser process serves all workers; each fetch runs in its own tab.
type BrowserFetcher struct {
	headless bool
	timeout  time.Duration
	logger   logger.Logger

	mu       sync.Mutex
	allocCtx context.Context
	cancel   context.CancelFunc
}

func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		headless: opts.Headless,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// allocator starts the browser on first use. Workers race here, so the
// lazy init is guarded.
func (f *BrowserFetcher) allocator() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.allocCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", f.headless),
		)
		f.allocCtx, f.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return f.allocCtx
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	f.logger.Debug("Rendering: %s", pageURL)

	tabCtx, cancelTab := chromedp.NewContext(f.allocator())
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	// The tab context descends from the allocator, not from ctx, so a
	// cancelled crawl has to close the tab explicitly.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var rendered string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	return []byte(rendered), nil
}

// Close shuts the browser process down.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
		f.allocCtx = nil
	}
	return nil
}
