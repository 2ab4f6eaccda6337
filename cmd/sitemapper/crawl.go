package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/will-x86/sitemapper"
	"github.com/will-x86/sitemapper/crawl"
	"github.com/will-x86/sitemapper/fetch"
	"github.com/will-x86/sitemapper/logger"
	"github.com/will-x86/sitemapper/scheduler"
	"github.com/will-x86/sitemapper/seen"
	"github.com/will-x86/sitemapper/sitemap"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl URL...",
		Short: "Crawl one or more sites and write a sitemap",
		Long: `Crawl starts from the given seed URLs and follows every link whose site
matches one of the seeds. Each link and image found along the way
becomes one sitemap record, whether or not it was in scope for
crawling.

Examples:
  # Crawl a site and print the sitemap as YAML
  sitemapper crawl https://example.com

  # Crawl two sites into one JSON file with eight workers
  sitemapper crawl -w 8 --format json -o sitemap.json https://a.com https://b.org

  # Follow links wherever they lead, but stop after 100 pages
  sitemapper crawl --all --max-pages 100 https://example.com

  # Keep the frontier in Redis and resume an interrupted crawl
  sitemapper crawl --redis localhost:6379 --resume https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("workers", "w", 3, "Number of concurrent crawl workers")
	cmd.Flags().IntP("max-pages", "p", 0, "Maximum pages to fetch (0 = unlimited)")
	cmd.Flags().Int("max-depth", 0, "Maximum link depth to follow (0 = unlimited)")
	cmd.Flags().BoolP("all", "a", false, "Follow links beyond the seed sites")
	cmd.Flags().StringP("out", "o", "", "Write the sitemap to this file (default stdout)")
	cmd.Flags().String("format", "yaml", "Output format: yaml or json")
	cmd.Flags().String("redis", "", "Redis address or URL backing the frontier")
	cmd.Flags().String("sqlite", "", "SQLite database path backing the frontier")
	cmd.Flags().String("namespace", "sitemapper", "Key prefix for the Redis backend")
	cmd.Flags().Bool("resume", false, "Keep durable frontier state and requeue in-flight leftovers")
	cmd.Flags().Duration("timeout", 30*time.Second, "Per-page fetch timeout")
	cmd.Flags().Float64("rate", 0, "Global fetch rate in requests/second (0 = unlimited)")
	cmd.Flags().Float64("per-host-rate", 0, "Per-host fetch rate in requests/second (0 = unlimited)")
	cmd.Flags().Bool("browser", false, "Render pages in headless Chrome before parsing")
	cmd.Flags().String("user-agent", "sitemapper/1.0", "User-Agent header for HTTP fetches")

	return cmd
}

type crawlConfig struct {
	seeds       []string
	workers     int
	maxPages    int
	maxDepth    int
	all         bool
	out         string
	format      string
	redisAddr   string
	sqlitePath  string
	namespace   string
	resume      bool
	timeout     time.Duration
	rate        float64
	perHostRate float64
	browser     bool
	userAgent   string
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	log := newLogger(cmd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received shutdown signal, finishing up...")
		cancel()
	}()

	return runCrawl(ctx, cfg, log)
}

// buildCrawlConfig reads the flags, overlaying environment defaults on
// any flag the user did not set.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*crawlConfig, error) {
	cfg := &crawlConfig{seeds: args}

	var err error
	if cfg.workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.maxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.maxDepth, err = cmd.Flags().GetInt("max-depth"); err != nil {
		return nil, err
	}
	if cfg.all, err = cmd.Flags().GetBool("all"); err != nil {
		return nil, err
	}
	if cfg.out, err = cmd.Flags().GetString("out"); err != nil {
		return nil, err
	}
	if cfg.format, err = cmd.Flags().GetString("format"); err != nil {
		return nil, err
	}
	if cfg.redisAddr, err = cmd.Flags().GetString("redis"); err != nil {
		return nil, err
	}
	if cfg.sqlitePath, err = cmd.Flags().GetString("sqlite"); err != nil {
		return nil, err
	}
	if cfg.namespace, err = cmd.Flags().GetString("namespace"); err != nil {
		return nil, err
	}
	if cfg.resume, err = cmd.Flags().GetBool("resume"); err != nil {
		return nil, err
	}
	if cfg.timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.rate, err = cmd.Flags().GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.perHostRate, err = cmd.Flags().GetFloat64("per-host-rate"); err != nil {
		return nil, err
	}
	if cfg.browser, err = cmd.Flags().GetBool("browser"); err != nil {
		return nil, err
	}
	if cfg.userAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}

	env, err := loadEnvConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}
	if !cmd.Flags().Changed("workers") && env.Workers > 0 {
		cfg.workers = env.Workers
	}
	if !cmd.Flags().Changed("namespace") && env.Namespace != "" {
		cfg.namespace = env.Namespace
	}
	if !cmd.Flags().Changed("user-agent") && env.UserAgent != "" {
		cfg.userAgent = env.UserAgent
	}
	if !cmd.Flags().Changed("redis") && env.RedisAddr != "" {
		cfg.redisAddr = env.RedisAddr
	}

	if cfg.redisAddr != "" && cfg.sqlitePath != "" {
		return nil, errors.New("--redis and --sqlite are mutually exclusive")
	}
	if cfg.format != "yaml" && cfg.format != "json" {
		return nil, fmt.Errorf("unknown format %q (expected yaml or json)", cfg.format)
	}

	return cfg, nil
}

func newLogger(cmd *cobra.Command) logger.Logger {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, _ = cmd.Root().PersistentFlags().GetBool("verbose")
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		logJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json")
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.NewZerologLoggerWithOptions(logger.ZerologOptions{
		Level: level,
		JSON:  logJSON,
	})
}

// runCrawl wires the backends together and runs the crawl.
func runCrawl(ctx context.Context, cfg *crawlConfig, log logger.Logger) error {
	sched, set, cleanup, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var fetcher sitemapper.Fetcher
	if cfg.browser {
		b := fetch.NewBrowserFetcher(fetch.BrowserOptions{
			Headless: true,
			Timeout:  cfg.timeout,
			Logger:   log,
		})
		defer b.Close()
		fetcher = b
	} else {
		fetcher = fetch.NewHTTPFetcher(fetch.HTTPOptions{
			Timeout:   cfg.timeout,
			UserAgent: cfg.userAgent,
			Logger:    log,
		})
	}

	var limiter crawl.RateLimiter
	switch {
	case cfg.perHostRate > 0:
		limiter = crawl.NewHostRateLimiter(cfg.perHostRate, 1)
	case cfg.rate > 0:
		limiter = crawl.NewGlobalRateLimiter(cfg.rate, 1)
	}

	var scope crawl.Scope
	if cfg.all {
		scope = crawl.ScopeAll
	}

	c, err := crawl.New(crawl.Options{
		Scheduler:   sched,
		Seen:        set,
		Fetcher:     fetcher,
		Workers:     cfg.workers,
		MaxPages:    cfg.maxPages,
		MaxDepth:    cfg.maxDepth,
		Scope:       scope,
		RateLimiter: limiter,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	log.Info("Starting crawl: %d seeds, %d workers", len(cfg.seeds), cfg.workers)
	start := time.Now()
	sm, runErr := c.Run(ctx, cfg.seeds...)

	// Whatever was gathered gets written, interrupted or not.
	if err := writeSitemap(cfg, sm); err != nil {
		return err
	}
	log.Info("Wrote %d sitemap records in %s", sm.Len(), time.Since(start).Round(time.Millisecond))

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("Crawl interrupted; the sitemap covers the pages finished so far")
			return nil
		}
		return runErr
	}
	return nil
}

// openBackends picks the frontier and seen-set backends from the config.
// The returned cleanup closes whatever was opened.
func openBackends(ctx context.Context, cfg *crawlConfig, log logger.Logger) (scheduler.Scheduler, seen.Set, func(), error) {
	switch {
	case cfg.redisAddr != "":
		client, err := newRedisClient(cfg.redisAddr)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup := func() { client.Close() }
		if err := client.Ping(ctx).Err(); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.redisAddr, err)
		}

		sched := scheduler.NewRedis(client, scheduler.RedisOptions{Namespace: cfg.namespace})
		set := seen.NewRedis(client, seen.RedisOptions{Namespace: cfg.namespace})
		if err := prepareDurableState(ctx, cfg, sched, set); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if cfg.resume {
			log.Info("Resuming crawl from redis namespace %q", cfg.namespace)
		}
		return sched, set, cleanup, nil

	case cfg.sqlitePath != "":
		sched, err := scheduler.NewSQLite(scheduler.SQLiteOptions{Path: cfg.sqlitePath})
		if err != nil {
			return nil, nil, nil, err
		}
		set, err := seen.NewSQLite(seen.SQLiteOptions{Path: cfg.sqlitePath})
		if err != nil {
			sched.Close()
			return nil, nil, nil, err
		}
		cleanup := func() {
			set.Close()
			sched.Close()
		}
		if err := prepareDurableState(ctx, cfg, sched, set); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		if cfg.resume {
			log.Info("Resuming crawl from %s", cfg.sqlitePath)
		}
		return sched, set, cleanup, nil

	default:
		sched := scheduler.NewMemory()
		set := seen.NewMemory()
		cleanup := func() {
			set.Close()
			sched.Close()
		}
		return sched, set, cleanup, nil
	}
}

// durableScheduler is the extra surface every persistent frontier
// backend carries beyond the Scheduler contract.
type durableScheduler interface {
	Recover(ctx context.Context) error
	Reset(ctx context.Context) error
}

type durableSeen interface {
	Reset(ctx context.Context) error
}

// prepareDurableState recovers in-flight leftovers when resuming, and
// otherwise wipes the previous crawl's state so the run starts clean.
func prepareDurableState(ctx context.Context, cfg *crawlConfig, sched durableScheduler, set durableSeen) error {
	if cfg.resume {
		if err := sched.Recover(ctx); err != nil {
			return fmt.Errorf("failed to recover in-flight items: %w", err)
		}
		return nil
	}
	if err := sched.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset the frontier: %w", err)
	}
	if err := set.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset the seen set: %w", err)
	}
	return nil
}

// newRedisClient accepts either a bare host:port or a redis:// URL.
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL %s: %w", addr, err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func writeSitemap(cfg *crawlConfig, sm *sitemap.Sitemap) error {
	output := os.Stdout
	if cfg.out != "" {
		if dir := filepath.Dir(cfg.out); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(cfg.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	if cfg.format == "json" {
		return sm.WriteJSON(output)
	}
	return sm.WriteYAML(output)
}
