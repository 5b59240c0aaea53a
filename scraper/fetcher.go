package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-1688/config"
	"github.com/aluiziolira/go-scrape-1688/models"
	"github.com/aluiziolira/go-scrape-1688/parser"
)

// profile is one set of network parameters for a request.
type profile struct {
	name            string
	timeout         time.Duration
	followRedirects bool
	skipVerify      bool
}

// Fetcher retrieves offer pages with header rotation, randomized delays,
// relaxed fallback requests and login-wall escalation to the mobile site.
// Each Fetch call uses its own collectors and transports.
type Fetcher struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *Metrics

	// Transport replaces the network transport of every profile.
	Transport http.RoundTripper
	// Sleep waits between attempts. It must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, logger *slog.Logger, metrics *Metrics) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:     cfg,
		logger:  logger.With("component", "fetcher"),
		metrics: metrics,
		Sleep:   sleepContext,
	}
}

func (f *Fetcher) directProfile() profile {
	return profile{name: "direct", timeout: f.cfg.Timeout, followRedirects: true}
}

func (f *Fetcher) alternateProfiles() []profile {
	return []profile{
		{name: "alternate_verify", timeout: f.cfg.Timeout, followRedirects: true},
		{name: "alternate_insecure", timeout: f.cfg.AltTimeout, followRedirects: true, skipVerify: true},
		{name: "alternate_no_redirect", timeout: f.cfg.Timeout},
	}
}

// Fetch returns the parsed page at rawURL, or a *FetchError once every
// attempt is exhausted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Document, error) {
	s := newSession(f)
	defer s.close()
	return f.fetch(ctx, s, rawURL, f.cfg.MaxRetries, false)
}

func (f *Fetcher) fetch(ctx context.Context, s *session, rawURL string, maxRetries int, mirror bool) (*models.Document, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		last := attempt == maxRetries-1
		if attempt > 0 {
			f.metrics.IncRetries()
		}
		if err := f.Sleep(ctx, f.delay(attempt)); err != nil {
			return nil, &FetchError{URL: rawURL, Attempts: attempt, Err: err}
		}

		userAgent := f.cfg.UserAgents[rand.IntN(len(f.cfg.UserAgents))]
		logger := f.logger.With(
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
		)
		logger.Debug("fetching page", slog.String("user_agent", userAgent))

		resp, err := s.get(ctx, rawURL, userAgent, f.directProfile())
		if err == nil && resp.status >= http.StatusBadRequest {
			err = classifyError(nil, resp.status)
		}
		if err != nil {
			f.metrics.IncError(errorTypeLabel(err))
			logger.Warn("direct request failed, trying alternate profiles", slog.Any("error", err))
			resp, err = f.alternate(ctx, s, rawURL, userAgent, logger)
			if err != nil {
				lastErr = err
				if ctx.Err() != nil {
					return nil, &FetchError{URL: rawURL, Attempts: attempt + 1, Err: ctx.Err()}
				}
				if !last {
					wait := time.Duration(attempt+1) * f.cfg.RetryBackoff
					logger.Info("backing off before retry", slog.Duration("wait", wait))
					if err := f.Sleep(ctx, wait); err != nil {
						return nil, &FetchError{URL: rawURL, Attempts: attempt + 1, Err: err}
					}
				}
				continue
			}
		}

		logger.Debug("response received",
			slog.Int("status", resp.status),
			slog.Int("bytes", len(resp.body)),
			slog.String("final_url", resp.finalURL),
		)

		if isLoginWall(resp.finalURL) {
			if !mirror && parser.IsDesktopURL(rawURL) {
				mobile := parser.MobileURL(rawURL)
				logger.Warn("redirected to login, trying mobile site", slog.String("mobile_url", mobile))
				f.metrics.IncEscalation("login_wall")
				return f.fetch(ctx, s, mobile, f.cfg.MobileMaxRetries, true)
			}
			err := ErrLoginRequired{Err: fmt.Errorf("redirected to %s", resp.finalURL)}
			f.metrics.IncError(errorTypeLabel(err))
			return nil, &FetchError{URL: rawURL, Attempts: attempt + 1, Err: err}
		}

		if len(resp.body) < f.cfg.MinBodyBytes {
			lastErr = ErrTooSmall{Err: fmt.Errorf("%d bytes", len(resp.body))}
			f.metrics.IncError(errorTypeLabel(lastErr))
			logger.Warn("response body too small", slog.Int("bytes", len(resp.body)))
			if !last {
				continue
			}
		}

		doc, err := models.NewDocument(rawURL, resp.finalURL, resp.status, resp.body)
		if err != nil {
			lastErr = err
			logger.Warn("could not parse page", slog.Any("error", err))
			continue
		}

		health := inspectPage(doc)
		if health.errorTitle {
			lastErr = health.errorPage()
			f.metrics.IncError(errorTypeLabel(lastErr))
			logger.Warn("error page detected", slog.String("title", health.title))
			if last {
				return nil, &FetchError{URL: rawURL, Attempts: attempt + 1, Err: lastErr}
			}
			continue
		}
		if health.captcha {
			lastErr = ErrBlocked{Err: errors.New("captcha challenge")}
			f.metrics.IncError(errorTypeLabel(lastErr))
			logger.Warn("anti-bot challenge detected")
			if !last {
				continue
			}
		}
		if !health.product {
			lastErr = ErrNoProductContent{Err: errors.New("no product wording on page")}
			f.metrics.IncError(errorTypeLabel(lastErr))
			logger.Warn("page has no product content")
			if !last {
				continue
			}
		}

		logger.Info("page fetched", slog.Int("status", resp.status), slog.Int("bytes", len(resp.body)))
		return doc, nil
	}

	logger := f.logger.With(slog.String("url", rawURL))
	logger.Error("all fetch attempts failed", slog.Int("attempts", maxRetries), slog.Any("error", lastErr))
	return nil, &FetchError{URL: rawURL, Attempts: maxRetries, Err: lastErr}
}

// alternate walks the relaxed profiles and accepts the first response that
// is not a server error and carries a non-trivial body.
func (f *Fetcher) alternate(ctx context.Context, s *session, rawURL, userAgent string, logger *slog.Logger) (*response, error) {
	var lastErr error
	for _, p := range f.alternateProfiles() {
		resp, err := s.get(ctx, rawURL, userAgent, p)
		if err != nil {
			lastErr = err
			f.metrics.IncError(errorTypeLabel(err))
			logger.Warn("alternate request failed", slog.String("profile", p.name), slog.Any("error", err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.status < http.StatusInternalServerError && len(resp.body) > f.cfg.AltMinBodyBytes {
			logger.Info("alternate request succeeded", slog.String("profile", p.name))
			return resp, nil
		}
		lastErr = classifyError(nil, resp.status)
		if lastErr == nil {
			lastErr = ErrTooSmall{Err: fmt.Errorf("%d bytes", len(resp.body))}
		}
		logger.Warn("alternate request returned unusable response",
			slog.String("profile", p.name),
			slog.Int("status", resp.status),
			slog.Int("bytes", len(resp.body)),
		)
	}
	return nil, lastErr
}

func (f *Fetcher) delay(attempt int) time.Duration {
	lo, hi := f.cfg.FirstDelayMin, f.cfg.FirstDelayMax
	if attempt > 0 {
		lo, hi = f.cfg.RetryDelayMin, f.cfg.RetryDelayMax
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func (f *Fetcher) headers(userAgent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Referer", f.cfg.Referer)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.Set("Accept-Encoding", "gzip")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "cross-site")
	h.Set("Cache-Control", "no-cache")
	h.Set("DNT", "1")
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type response struct {
	status   int
	finalURL string
	body     []byte
}

// session holds the transports of a single Fetch call.
type session struct {
	f          *Fetcher
	transports map[bool]*http.Transport
}

func newSession(f *Fetcher) *session {
	return &session{f: f, transports: make(map[bool]*http.Transport)}
}

func (s *session) transport(skipVerify bool) http.RoundTripper {
	if s.f.Transport != nil {
		return s.f.Transport
	}
	if t, ok := s.transports[skipVerify]; ok {
		return t
	}
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   s.f.cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: skipVerify}, //nolint:gosec // relaxed profile only
	}
	s.transports[skipVerify] = t
	return t
}

func (s *session) close() {
	for _, t := range s.transports {
		t.CloseIdleConnections()
	}
}

// get issues one GET through a fresh collector configured for p.
func (s *session) get(ctx context.Context, rawURL, userAgent string, p profile) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracker := &trackingTransport{ctx: ctx, base: s.transport(p.skipVerify)}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(userAgent),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(p.timeout)
	c.WithTransport(tracker)
	if !p.followRedirects {
		c.SetRedirectHandler(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})
	}

	var resp *response
	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		s.f.metrics.IncRequest(p.name)
	})
	c.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			s.f.metrics.ObserveDuration(time.Since(start))
		}
		final := tracker.last
		if final == "" && r.Request != nil && r.Request.URL != nil {
			final = r.Request.URL.String()
		}
		resp = &response{status: r.StatusCode, finalURL: final, body: r.Body}
	})

	err := c.Request(http.MethodGet, rawURL, nil, nil, s.f.headers(userAgent))
	if resp != nil {
		return resp, nil
	}
	if err == nil {
		err = errors.New("no response received")
	}
	return nil, classifyError(err, 0)
}

// trackingTransport records the last URL requested, which is the final URL
// after redirects, and ties every round trip to the caller's context.
type trackingTransport struct {
	ctx  context.Context
	base http.RoundTripper
	last string
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.last = req.URL.String()

	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, release: func() {
		stop()
		cancel()
	}}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	release func()
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.release()
	return err
}
