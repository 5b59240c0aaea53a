package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-scrape-1688/config"
	"github.com/aluiziolira/go-scrape-1688/extract"
	"github.com/aluiziolira/go-scrape-1688/models"
	"github.com/aluiziolira/go-scrape-1688/parser"
)

const (
	msgInvalidURL = "无效的1688商品链接格式"
	msgNoDocument = "无法获取页面内容，可能需要登录或页面不存在"
	msgException  = "抓取异常: %v"

	hintCheckLogin   = "请检查链接是否需要登录或在本地测试"
	hintCheckNetwork = "请检查网络连接和链接有效性"
)

// PageFetcher retrieves and parses one page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.Document, error)
}

// Scraper turns a 1688 offer link into a product record or an error record.
type Scraper struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   PageFetcher
	extractor *extract.Extractor
	Metrics   *Metrics

	now func() time.Time
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config, logger *slog.Logger) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics := NewMetrics()
	return &Scraper{
		cfg:       cfg,
		logger:    logger,
		fetcher:   NewFetcher(cfg, logger, metrics),
		extractor: extract.New(logger),
		Metrics:   metrics,
		now:       time.Now,
	}, nil
}

// Fetcher exposes the default fetcher so callers can swap its transport.
// It returns nil when a custom PageFetcher was installed.
func (s *Scraper) Fetcher() *Fetcher {
	f, _ := s.fetcher.(*Fetcher)
	return f
}

// SetFetcher replaces the page fetcher.
func (s *Scraper) SetFetcher(f PageFetcher) {
	s.fetcher = f
}

// Scrape fetches and extracts a single offer. It never panics and never
// returns a Go error; failures are reported as error records.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (result models.Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := s.logger.With(
		slog.String("scrape_id", uuid.NewString()),
		slog.String("url", rawURL),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scrape panicked", slog.Any("panic", r))
			result = models.Failure(fmt.Sprintf(msgException, r), map[string]any{
				"url":            rawURL,
				"exception_type": fmt.Sprintf("%T", r),
				"suggestion":     hintCheckNetwork,
			})
		}
		outcome := "success"
		if !result.OK() {
			outcome = "error"
		}
		s.Metrics.IncRecord(outcome)
		logger.Info("scrape finished",
			slog.String("outcome", outcome),
			slog.Duration("elapsed", time.Since(start)),
		)
	}()

	kind := parser.ClassifyURL(rawURL)
	if kind == parser.KindInvalid {
		logger.Warn("rejected link")
		return models.Failure(msgInvalidURL, map[string]any{
			"original_url": rawURL,
			"error_type":   "extraction_failed",
			"suggestion":   hintCheckLogin,
		})
	}

	doc, fields, cause := s.primary(ctx, logger, rawURL, kind)
	if doc == nil {
		return models.Failure(msgNoDocument, map[string]any{
			"original_url": rawURL,
			"error_type":   "extraction_failed",
			"cause":        cause,
			"suggestion":   hintCheckLogin,
		})
	}

	rec := s.assemble(doc, fields)
	s.Metrics.ObserveQuality(rec.Quality.Score)
	logger.Info("product extracted",
		slog.String("title", rec.Title),
		slog.Int("images", len(rec.Images)),
		slog.Int("specifications", len(rec.Specifications)),
		slog.Int("quality", rec.Quality.Score),
		slog.String("method", rec.Quality.ExtractionMethod),
	)
	return models.Success(rec)
}

// primary fetches and extracts rawURL, trying the mobile mirror at most once
// when a desktop link fails or yields no title. cause labels the last fetch
// failure when no document was obtained.
func (s *Scraper) primary(ctx context.Context, logger *slog.Logger, rawURL string, kind parser.URLKind) (*models.Document, models.Fields, string) {
	doc, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		logger.Warn("primary fetch failed", slog.Any("error", err))
		if kind == parser.KindDesktop && !triedMirror(err) && ctx.Err() == nil {
			if mdoc, mfields, ok := s.mirror(ctx, logger, rawURL, "primary_failed"); ok {
				return mdoc, mfields, ""
			}
		}
		return nil, models.Fields{}, errorTypeLabel(err)
	}

	fields := s.extractor.Extract(doc)
	if fields.Title == models.TitleNotFound && kind == parser.KindDesktop &&
		!parser.IsMobileHost(doc.URL) && ctx.Err() == nil {
		if mdoc, mfields, ok := s.mirror(ctx, logger, rawURL, "missing_title"); ok && mfields.Title != models.TitleNotFound {
			return mdoc, mfields, ""
		}
	}
	return doc, fields, ""
}

// triedMirror reports whether the fetcher already followed a login wall to the
// mobile site, which counts as the single mirror attempt.
func triedMirror(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && parser.IsMobileHost(fe.URL)
}

func (s *Scraper) mirror(ctx context.Context, logger *slog.Logger, rawURL, reason string) (*models.Document, models.Fields, bool) {
	mobile := parser.MobileURL(rawURL)
	s.Metrics.IncEscalation(reason)
	logger.Info("trying mobile site", slog.String("mobile_url", mobile), slog.String("reason", reason))

	doc, err := s.fetcher.Fetch(ctx, mobile)
	if err != nil {
		logger.Warn("mobile fetch failed", slog.Any("error", err))
		return nil, models.Fields{}, false
	}
	return doc, s.extractor.Extract(doc), true
}

func (s *Scraper) assemble(doc *models.Document, f models.Fields) *models.ProductRecord {
	images := f.Images
	if images == nil {
		images = []string{}
	}
	specs := f.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	return &models.ProductRecord{
		SourceURL:      doc.URL,
		ProductID:      parser.ProductID(doc.URL),
		Title:          f.Title,
		Price:          f.Price,
		Images:         images,
		Description:    f.Description,
		Specifications: specs,
		ScrapedAt:      s.now().Format(models.ScrapedAtLayout),
		Quality:        parser.Score(f, doc.URL),
	}
}
