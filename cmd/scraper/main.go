package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aluiziolira/go-scrape-1688/config"
	"github.com/aluiziolira/go-scrape-1688/models"
	"github.com/aluiziolira/go-scrape-1688/pipeline"
	"github.com/aluiziolira/go-scrape-1688/scraper"
	"github.com/aluiziolira/go-scrape-1688/uploader"
)

type options struct {
	url         string
	urlsFile    string
	configFile  string
	output      string
	format      string
	parallel    int
	maxRetries  int
	timeout     time.Duration
	upload      bool
	history     string
	metricsAddr string
	logFile     string
	verbose     bool

	testConnection bool
}

func main() {
	defaultCfg := config.DefaultConfig()
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	timeoutDefault := defaultCfg.Timeout
	if value, ok, err := config.EnvDuration("SCRAPER_TIMEOUT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_TIMEOUT: %v\n", err)
		os.Exit(1)
	} else if ok {
		timeoutDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	var opts options
	flag.StringVar(&opts.url, "url", "", "Single 1688 offer URL to scrape")
	flag.StringVar(&opts.urlsFile, "urls", "", "File with one offer URL per line")
	flag.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.output, "output", outputDefault, "Output file path")
	flag.StringVar(&opts.format, "format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	flag.IntVar(&opts.parallel, "parallel", parallelDefault, "Number of offers scraped concurrently")
	flag.IntVar(&opts.maxRetries, "max-retries", defaultCfg.MaxRetries, "Fetch attempts per URL")
	flag.DurationVar(&opts.timeout, "timeout", timeoutDefault, "Per-request timeout")
	flag.BoolVar(&opts.upload, "upload", false, "Upload scraped products to the WooCommerce store")
	flag.StringVar(&opts.history, "history", defaultCfg.HistoryFile, "Upload history file")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	flag.StringVar(&opts.logFile, "log-file", "", "Also write logs to this rotating file")
	flag.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")
	flag.BoolVar(&opts.testConnection, "test-connection", false, "Check the WooCommerce store credentials and endpoints, then exit")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := buildConfig(opts, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level := newLogger(cfg.Verbose, cfg.LogFile)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if opts.testConnection {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err := testConnection(ctx, cfg, logger, os.Stdout)
		stop()
		if err != nil {
			slog.Error("connection test failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	urls, err := collectURLs(opts)
	if err != nil {
		slog.Error("reading urls", slog.Any("error", err))
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: scraper -url <offer url> | -urls <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	if err := run(ctx, cfg, opts, set, urls, logger); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, set map[string]bool, urls []string, logger *slog.Logger) error {
	s, err := scraper.NewScraper(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	var up *uploader.Client
	var history *pipeline.History
	if opts.upload {
		up, err = uploader.NewClient(cfg.Upload, logger)
		if err != nil {
			return fmt.Errorf("initialising uploader: %w", err)
		}
		if cfg.HistoryFile != "" {
			history = pipeline.NewHistory(cfg.HistoryFile, cfg.HistoryLimit)
		}
	}

	// A single URL prints its result; files are only written when asked for.
	single := len(urls) == 1 && opts.urlsFile == ""
	var (
		writer pipeline.OutputWriter
		p      *pipeline.Pipeline
	)
	if !single || set["output"] || set["format"] {
		writer, err = pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("creating writer: %w", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close writer", slog.Any("error", err))
			}
		}()
		p = pipeline.NewPipeline(ctx, writer, cfg).WithLogger(logger)
		p.Start(cfg.Parallelism)
		if cfg.Verbose {
			p.StartMetricsReporting(10 * time.Second)
		}
	}

	summary := &models.RunSummary{StartTime: time.Now(), TotalCount: len(urls)}
	var mu sync.Mutex
	results := make([]models.Result, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for i, u := range urls {
		g.Go(func() error {
			result := s.Scrape(gctx, u)
			results[i] = result

			uploaded := false
			if result.OK() {
				if p != nil {
					if err := p.Process(result.Product); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
						slog.Error("pipeline process error", slog.Any("error", err))
					}
				}
				if up != nil {
					uploaded = uploadOne(gctx, up, history, result.Product)
				}
			} else if history != nil {
				recordHistory(history, models.HistoryRecord{
					SourceURL: u,
					Status:    models.StatusFailed,
					Message:   result.Error.Error,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if result.OK() {
				summary.SuccessCount++
			} else {
				summary.ErrorCount++
				summary.FailedURLs = append(summary.FailedURLs, u)
			}
			if uploaded {
				summary.Uploaded++
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.EndTime = time.Now()

	if p != nil {
		if err := p.Close(); err != nil {
			return fmt.Errorf("pipeline shutdown: %w", err)
		}
		if p.Processed() > 0 {
			if err := writer.Validate(); err != nil {
				return fmt.Errorf("output validation: %w", err)
			}
		}
	}

	if single {
		return printResult(os.Stdout, results[0])
	}
	printSummary(summary, cfg.OutputFile, p)
	return nil
}

func uploadOne(ctx context.Context, up *uploader.Client, history *pipeline.History, rec *models.ProductRecord) bool {
	entry := models.HistoryRecord{Title: rec.Title, SourceURL: rec.SourceURL}
	result, err := up.Upload(ctx, rec)
	if err != nil {
		slog.Error("upload failed", slog.String("url", rec.SourceURL), slog.Any("error", err))
		entry.Status = models.StatusFailed
		entry.Message = err.Error()
	} else {
		entry.Status = models.StatusSuccess
		entry.RemoteID = strconv.FormatInt(result.ID, 10)
		entry.Message = "商品上传成功"
	}
	if history != nil {
		recordHistory(history, entry)
	}
	return err == nil
}

func recordHistory(history *pipeline.History, entry models.HistoryRecord) {
	if _, err := history.Add(entry); err != nil {
		slog.Warn("history update failed", slog.Any("error", err))
	}
}

// testConnection prints one line per store check.
func testConnection(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	up, err := uploader.NewClient(cfg.Upload, logger)
	if err != nil {
		return err
	}
	return diagnose(ctx, up, w)
}

func diagnose(ctx context.Context, up *uploader.Client, w io.Writer) error {
	checks, err := up.Diagnose(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "连接测试成功")
	for _, c := range checks {
		fmt.Fprintln(w, c.String())
	}
	return nil
}

func buildConfig(opts options, set map[string]bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		if err := config.LoadFile(opts.configFile, cfg); err != nil {
			return nil, err
		}
	}
	config.ApplyUploadEnv(cfg)

	// Without a config file every flag value applies, since its default
	// already folds in the environment. A file is only overridden by flags
	// given explicitly.
	override := func(name string) bool {
		return set[name] || opts.configFile == ""
	}
	if override("output") {
		cfg.OutputFile = opts.output
	}
	if override("format") {
		cfg.OutputFormat = strings.ToLower(opts.format)
	}
	if override("parallel") {
		cfg.Parallelism = opts.parallel
	}
	if override("max-retries") {
		cfg.MaxRetries = opts.maxRetries
	}
	if override("timeout") {
		cfg.Timeout = opts.timeout
	}
	if override("history") {
		cfg.HistoryFile = opts.history
	}
	if override("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if set["log-file"] {
		cfg.LogFile = opts.logFile
	}
	if set["v"] {
		cfg.Verbose = opts.verbose
	}
	return cfg, nil
}

func collectURLs(opts options) ([]string, error) {
	var urls []string
	if opts.url != "" {
		urls = append(urls, strings.TrimSpace(opts.url))
	}
	if opts.urlsFile != "" {
		f, err := os.Open(opts.urlsFile)
		if err != nil {
			return nil, fmt.Errorf("open urls file: %w", err)
		}
		defer f.Close()
		fromFile, err := readURLs(f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	}
	return urls, nil
}

// readURLs returns one URL per non-blank line, skipping # comments.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read urls: %w", err)
	}
	return urls, nil
}

func printResult(w io.Writer, result models.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printSummary(summary *models.RunSummary, outputFile string, p *pipeline.Pipeline) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	fmt.Printf("  Total URLs:    %d\n", summary.TotalCount)
	successRate := 0.0
	if summary.TotalCount > 0 {
		successRate = float64(summary.SuccessCount) / float64(summary.TotalCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", summary.ErrorCount)
	fmt.Printf("  Uploaded:      %d\n", summary.Uploaded)
	if len(summary.FailedURLs) > 0 {
		fmt.Printf("  Failed URLs:   %s\n", strings.Join(summary.FailedURLs, ", "))
	}
	if p != nil {
		metrics := p.GetMetrics()
		if processed, ok := metrics["processed_records"].(int64); ok {
			fmt.Printf("  Written:       %d\n", processed)
		}
		if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
			fmt.Printf("  Validation:    %v\n", valErrors)
		}
	}
	fmt.Printf("  Duration:      %v\n", summary.EndTime.Sub(summary.StartTime))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

// newLogger writes to stderr so single-URL results on stdout stay parseable.
func newLogger(verbose bool, logFile string) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var out io.Writer = os.Stderr
	terminal := isTerminal(os.Stderr)
	if logFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		})
		terminal = false
	}

	var handler slog.Handler
	if terminal {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
