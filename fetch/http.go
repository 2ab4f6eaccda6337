// Package fetch provides the page fetchers a crawl plugs into its worker
// pool: plain HTTP and a headless browser for script-rendered sites.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/will-x86/sitemapper/logger"
)

// StatusError reports a response outside the 2xx range. The page counts
// as a fetch failure but the body is never parsed.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

type HTTPOptions struct {
	Timeout      time.Duration // default 30s
	MaxRedirects int           // default 10
	MaxBodySize  int64         // bytes read per page, default 10MB
	UserAgent    string
	Logger       logger.Logger
}

type HTTPFetcher struct {
	client      *http.Client
	maxBodySize int64
	userAgent   string
	logger      logger.Logger
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Logger == nil {
		opts.Logger = logger.NewStdLogger()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 10
	}
	if opts.MaxBodySize == 0 {
		opts.MaxBodySize = 10 << 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sitemapper/1.0"
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", opts.MaxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client:      client,
		maxBodySize: opts.MaxBodySize,
		userAgent:   opts.UserAgent,
		logger:      opts.Logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	f.logger.Debug("Fetching: %s", pageURL)

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	// Pages past the size cap are truncated, not failed; the parser
	// still gets whatever fit.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return body, nil
}
