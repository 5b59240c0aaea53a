package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/go-scrape-1688/config"
	"github.com/aluiziolira/go-scrape-1688/models"
)

const (
	desktopOffer = "https://detail.1688.com/offer/793064484013.html"
	mobileOffer  = "https://m.1688.com/offer/793064484013.html"
	loginPage    = "https://login.1688.com/member/signin.htm"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.FirstDelayMin, cfg.FirstDelayMax = 0, 0
	cfg.RetryDelayMin, cfg.RetryDelayMax = 0, 0
	cfg.RetryBackoff = time.Second
	cfg.Timeout = 5 * time.Second
	cfg.AltTimeout = 5 * time.Second
	return cfg
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.sleeps))
	copy(out, r.sleeps)
	return out
}

func newTestScraper(t *testing.T, cfg *config.Config) (*Scraper, *httpmock.MockTransport, *sleepRecorder) {
	t.Helper()
	s, err := NewScraper(cfg, nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	sleeps := &sleepRecorder{}
	s.Fetcher().Transport = transport
	s.Fetcher().Sleep = sleeps.sleep
	s.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
	return s, transport, sleeps
}

func newTestFetcher(cfg *config.Config) (*Fetcher, *httpmock.MockTransport, *sleepRecorder) {
	f := NewFetcher(cfg, nil, NewMetrics())
	transport := httpmock.NewMockTransport()
	sleeps := &sleepRecorder{}
	f.Transport = transport
	f.Sleep = sleeps.sleep
	return f, transport, sleeps
}

func htmlResponder(body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, body)
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
		resp.Request = req
		return resp, nil
	}
}

func redirectResponder(location string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusFound, "")
		resp.Header.Set("Location", location)
		resp.Request = req
		return resp, nil
	}
}

// sequenceResponder replies with each responder in turn and repeats the last.
func sequenceResponder(responders ...httpmock.Responder) httpmock.Responder {
	var calls int64
	return func(req *http.Request) (*http.Response, error) {
		i := int(atomic.AddInt64(&calls, 1)) - 1
		if i >= len(responders) {
			i = len(responders) - 1
		}
		return responders[i](req)
	}
}

// offerPage renders a page large enough to pass the body size check.
func offerPage(head, body string) string {
	var b strings.Builder
	b.WriteString("<html><head>")
	b.WriteString(head)
	b.WriteString("</head><body>")
	b.WriteString(body)
	b.WriteString("<!-- ")
	b.WriteString(strings.Repeat("x", 1200))
	b.WriteString(" --></body></html>")
	return b.String()
}

func productPage(title string) string {
	return offerPage(
		"<title>"+title+" - 阿里巴巴</title>",
		`<h1 class="product-title">`+title+`</h1>
<div class="price-range"><span class="price-value">¥12.50</span></div>
<div class="mod-detail-gallery"><img src="https://cbu01.alicdn.com/img/ibank/product1.jpg"></div>
<p>价格 起订量 厂家直销</p>`,
	)
}

func untitledPage() string {
	return offerPage("", `<div class="summary"><p>价格 起订量 供应商</p></div>`)
}

func TestScrapeRejectsInvalidURL(t *testing.T) {
	inputs := []string{
		"not-a-url",
		"",
		"https://example.com/offer/1.html",
		"ftp://detail.1688.com/offer/1.html",
		"https://detail.1688.com/item/123.html",
	}

	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			s, transport, _ := newTestScraper(t, testConfig())

			result := s.Scrape(context.Background(), input)

			if result.OK() {
				t.Fatalf("expected error record for %q", input)
			}
			if result.Error.Error != msgInvalidURL {
				t.Fatalf("error=%q, want %q", result.Error.Error, msgInvalidURL)
			}
			if got := transport.GetTotalCallCount(); got != 0 {
				t.Fatalf("network calls=%d, want 0", got)
			}
		})
	}
}

func TestScrapeDesktopOffer(t *testing.T) {
	s, transport, _ := newTestScraper(t, testConfig())

	var acceptLanguage atomic.Value
	page := htmlResponder(productPage("优质硅胶手机壳批发"))
	transport.RegisterResponder(http.MethodGet, desktopOffer, func(req *http.Request) (*http.Response, error) {
		acceptLanguage.Store(req.Header.Get("Accept-Language"))
		return page(req)
	})

	result := s.Scrape(context.Background(), desktopOffer)
	if !result.OK() {
		t.Fatalf("expected product, got error %+v", result.Error)
	}

	rec := result.Product
	if rec.Title != "优质硅胶手机壳批发" {
		t.Fatalf("title=%q", rec.Title)
	}
	if rec.SourceURL != desktopOffer {
		t.Fatalf("source url=%q, want %q", rec.SourceURL, desktopOffer)
	}
	if rec.ID() != "793064484013" {
		t.Fatalf("product id=%q", rec.ID())
	}
	if rec.ScrapedAt != "2024-05-01 08:30:00" {
		t.Fatalf("scraped_at=%q", rec.ScrapedAt)
	}
	if len(rec.Images) != 1 || rec.Images[0] != "https://cbu01.alicdn.com/img/ibank/product1.jpg" {
		t.Fatalf("images=%v", rec.Images)
	}
	if rec.Specifications == nil {
		t.Fatalf("specifications should never be nil")
	}
	if rec.Quality.ExtractionMethod != models.MethodDesktop {
		t.Fatalf("method=%q, want desktop", rec.Quality.ExtractionMethod)
	}
	if rec.Quality.Score < 0 || rec.Quality.Score > 10 {
		t.Fatalf("score out of range: %d", rec.Quality.Score)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("network calls=%d, want 1", got)
	}
	if got, _ := acceptLanguage.Load().(string); !strings.HasPrefix(got, "zh-CN") {
		t.Fatalf("accept-language=%q", got)
	}
	if got := testutil.ToFloat64(s.Metrics.RecordsTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("success records=%v, want 1", got)
	}
}

func TestScrapeEscalatesToMobileOnMissingTitle(t *testing.T) {
	s, transport, _ := newTestScraper(t, testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, htmlResponder(untitledPage()))
	transport.RegisterResponder(http.MethodGet, mobileOffer, htmlResponder(productPage("手工陶瓷花瓶摆件")))

	result := s.Scrape(context.Background(), desktopOffer)
	if !result.OK() {
		t.Fatalf("expected product, got error %+v", result.Error)
	}

	rec := result.Product
	if rec.Title != "手工陶瓷花瓶摆件" {
		t.Fatalf("title=%q", rec.Title)
	}
	if rec.SourceURL != mobileOffer {
		t.Fatalf("source url=%q, want mobile url", rec.SourceURL)
	}
	if rec.Quality.ExtractionMethod != models.MethodMobile {
		t.Fatalf("method=%q, want mobile", rec.Quality.ExtractionMethod)
	}
	if got := testutil.ToFloat64(s.Metrics.EscalationsTotal.WithLabelValues("missing_title")); got != 1 {
		t.Fatalf("escalations=%v, want 1", got)
	}
}

func TestScrapeKeepsPrimaryWhenMobileHasNoTitle(t *testing.T) {
	s, transport, _ := newTestScraper(t, testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, htmlResponder(untitledPage()))
	transport.RegisterResponder(http.MethodGet, mobileOffer, htmlResponder(untitledPage()))

	result := s.Scrape(context.Background(), desktopOffer)
	if !result.OK() {
		t.Fatalf("expected product, got error %+v", result.Error)
	}
	if result.Product.Title != models.TitleNotFound {
		t.Fatalf("title=%q, want sentinel", result.Product.Title)
	}
	if result.Product.SourceURL != desktopOffer {
		t.Fatalf("source url=%q, want desktop url", result.Product.SourceURL)
	}
	if result.Product.Price == "" {
		t.Fatalf("price should never be empty")
	}
	info := transport.GetCallCountInfo()
	if info["GET "+desktopOffer] != 1 || info["GET "+mobileOffer] != 1 {
		t.Fatalf("calls=%v, want one desktop and one mobile", info)
	}
}

func TestScrapeEscalatesWhenPrimaryFails(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	s, transport, _ := newTestScraper(t, cfg)
	transport.RegisterResponder(http.MethodGet, desktopOffer, httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))
	transport.RegisterResponder(http.MethodGet, mobileOffer, htmlResponder(productPage("不锈钢保温杯定制")))

	result := s.Scrape(context.Background(), desktopOffer)
	if !result.OK() {
		t.Fatalf("expected product, got error %+v", result.Error)
	}
	if result.Product.SourceURL != mobileOffer {
		t.Fatalf("source url=%q, want mobile url", result.Product.SourceURL)
	}
	// direct request plus three alternate profiles
	if got := transport.GetCallCountInfo()["GET "+desktopOffer]; got != 4 {
		t.Fatalf("desktop calls=%d, want 4", got)
	}
	if got := testutil.ToFloat64(s.Metrics.EscalationsTotal.WithLabelValues("primary_failed")); got != 1 {
		t.Fatalf("escalations=%v, want 1", got)
	}
}

func TestScrapeGenericURLDoesNotEscalate(t *testing.T) {
	generic := "https://shop1234.1688.com/page/offerlist.htm"
	s, transport, _ := newTestScraper(t, testConfig())
	transport.RegisterResponder(http.MethodGet, generic, htmlResponder(untitledPage()))

	result := s.Scrape(context.Background(), generic)
	if !result.OK() {
		t.Fatalf("expected product, got error %+v", result.Error)
	}
	if result.Product.Title != models.TitleNotFound {
		t.Fatalf("title=%q, want sentinel", result.Product.Title)
	}
	if result.Product.ProductID != nil {
		t.Fatalf("product id=%q, want nil", *result.Product.ProductID)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("network calls=%d, want 1", got)
	}
}

func TestScrapeReportsMissingDocument(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	generic := "https://shop1234.1688.com/page/offerlist.htm"
	s, transport, _ := newTestScraper(t, cfg)
	transport.RegisterResponder(http.MethodGet, generic, httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	result := s.Scrape(context.Background(), generic)
	if result.OK() {
		t.Fatalf("expected error record")
	}
	if result.Error.Error != msgNoDocument {
		t.Fatalf("error=%q, want %q", result.Error.Error, msgNoDocument)
	}
	if result.Error.DebugInfo["original_url"] != generic {
		t.Fatalf("debug info=%v", result.Error.DebugInfo)
	}
	if got := testutil.ToFloat64(s.Metrics.RecordsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("error records=%v, want 1", got)
	}
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, string) (*models.Document, error) {
	panic("boom")
}

func TestScrapeRecoversPanic(t *testing.T) {
	s, _, _ := newTestScraper(t, testConfig())
	s.SetFetcher(panickingFetcher{})

	result := s.Scrape(context.Background(), desktopOffer)
	if result.OK() {
		t.Fatalf("expected error record")
	}
	if result.Error.Error != "抓取异常: boom" {
		t.Fatalf("error=%q", result.Error.Error)
	}
	if result.Error.DebugInfo["exception_type"] != "string" {
		t.Fatalf("exception type=%v", result.Error.DebugInfo["exception_type"])
	}
}

func TestFetchFollowsLoginWallToMobile(t *testing.T) {
	f, transport, _ := newTestFetcher(testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, redirectResponder(loginPage))
	transport.RegisterResponder(http.MethodGet, loginPage, htmlResponder(offerPage("<title>登录</title>", "<p>请登录</p>")))
	transport.RegisterResponder(http.MethodGet, mobileOffer, htmlResponder(productPage("折叠收纳箱大号")))

	doc, err := f.Fetch(context.Background(), desktopOffer)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.URL != mobileOffer {
		t.Fatalf("doc url=%q, want mobile url", doc.URL)
	}
	if got := testutil.ToFloat64(f.metrics.EscalationsTotal.WithLabelValues("login_wall")); got != 1 {
		t.Fatalf("escalations=%v, want 1", got)
	}
}

func TestFetchLoginWallOnMobileFails(t *testing.T) {
	f, transport, _ := newTestFetcher(testConfig())
	transport.RegisterResponder(http.MethodGet, mobileOffer, redirectResponder(loginPage))
	transport.RegisterResponder(http.MethodGet, loginPage, htmlResponder(offerPage("<title>登录</title>", "<p>请登录</p>")))

	_, err := f.Fetch(context.Background(), mobileOffer)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err=%v, want *FetchError", err)
	}
	var login ErrLoginRequired
	if !errors.As(err, &login) {
		t.Fatalf("err=%v, want login required", err)
	}
}

func TestScrapeDoesNotEscalateTwiceAfterLoginWall(t *testing.T) {
	s, transport, _ := newTestScraper(t, testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, redirectResponder(loginPage))
	transport.RegisterResponder(http.MethodGet, mobileOffer, redirectResponder(loginPage))
	transport.RegisterResponder(http.MethodGet, loginPage, htmlResponder(offerPage("<title>登录</title>", "<p>请登录</p>")))

	result := s.Scrape(context.Background(), desktopOffer)
	if result.OK() {
		t.Fatalf("expected error record")
	}
	if got := transport.GetCallCountInfo()["GET "+mobileOffer]; got != 1 {
		t.Fatalf("mobile calls=%d, want 1", got)
	}
	if got := testutil.ToFloat64(s.Metrics.EscalationsTotal.WithLabelValues("primary_failed")); got != 0 {
		t.Fatalf("primary_failed escalations=%v, want 0", got)
	}
}

func TestFetchRetriesCaptchaPage(t *testing.T) {
	f, transport, sleeps := newTestFetcher(testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, sequenceResponder(
		htmlResponder(offerPage("<title>验证</title>", "<p>请输入验证码 价格</p>")),
		htmlResponder(productPage("加厚帆布购物袋")),
	))

	doc, err := f.Fetch(context.Background(), desktopOffer)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.Doc.Find("h1").Text() != "加厚帆布购物袋" {
		t.Fatalf("unexpected page returned")
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls=%d, want 2", got)
	}
	if got := len(sleeps.all()); got != 2 {
		t.Fatalf("sleeps=%d, want one delay per attempt", got)
	}
	if got := testutil.ToFloat64(f.metrics.ErrorsTotal.WithLabelValues("blocked")); got != 1 {
		t.Fatalf("blocked errors=%v, want 1", got)
	}
}

func TestFetchErrorTitleOnLastAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	f, transport, _ := newTestFetcher(cfg)
	transport.RegisterResponder(http.MethodGet, desktopOffer,
		htmlResponder(offerPage("<title>页面不存在</title>", "<p>价格</p>")))

	_, err := f.Fetch(context.Background(), desktopOffer)
	var errorPage ErrErrorPage
	if !errors.As(err, &errorPage) {
		t.Fatalf("err=%v, want error page", err)
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls=%d, want 2", got)
	}
}

func TestFetchUsesAlternateProfiles(t *testing.T) {
	f, transport, _ := newTestFetcher(testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, sequenceResponder(
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"),
		htmlResponder(productPage("可折叠硅胶水杯")),
	))

	doc, err := f.Fetch(context.Background(), desktopOffer)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", doc.StatusCode)
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls=%d, want 2", got)
	}
	if got := testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("alternate_verify")); got != 1 {
		t.Fatalf("alternate requests=%v, want 1", got)
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(cfg)

	var mu sync.Mutex
	var seen []http.Header
	capture := func(next httpmock.Responder) httpmock.Responder {
		return func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			seen = append(seen, req.Header.Clone())
			mu.Unlock()
			return next(req)
		}
	}
	transport.RegisterResponder(http.MethodGet, desktopOffer, capture(sequenceResponder(
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"),
		htmlResponder(productPage("可折叠硅胶水杯")),
	)))

	if _, err := f.Fetch(context.Background(), desktopOffer); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("requests=%d, want direct and alternate", len(seen))
	}
	pool := make(map[string]bool, len(cfg.UserAgents))
	for _, ua := range cfg.UserAgents {
		pool[ua] = true
	}
	for i, h := range seen {
		if !pool[h.Get("User-Agent")] {
			t.Fatalf("request %d: user agent %q not from pool", i, h.Get("User-Agent"))
		}
		if got := h.Get("Referer"); got != "https://www.1688.com/" {
			t.Fatalf("request %d: referer=%q", i, got)
		}
		if got := h.Get("Accept-Language"); got != "zh-CN,zh;q=0.9,en;q=0.8" {
			t.Fatalf("request %d: accept-language=%q", i, got)
		}
		if got := h.Get("Accept"); !strings.HasPrefix(got, "text/html") {
			t.Fatalf("request %d: accept=%q", i, got)
		}
		if got := h.Get("Sec-Fetch-Mode"); got != "navigate" {
			t.Fatalf("request %d: sec-fetch-mode=%q", i, got)
		}
	}
	if seen[0].Get("User-Agent") != seen[1].Get("User-Agent") {
		t.Fatalf("alternate profile changed user agent within one attempt")
	}
}

func TestFetchBacksOffBetweenAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	f, transport, sleeps := newTestFetcher(cfg)
	transport.RegisterResponder(http.MethodGet, desktopOffer, httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))

	_, err := f.Fetch(context.Background(), desktopOffer)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err=%v, want *FetchError", err)
	}
	if fetchErr.Attempts != 3 {
		t.Fatalf("attempts=%d, want 3", fetchErr.Attempts)
	}
	if got := transport.GetTotalCallCount(); got != 12 {
		t.Fatalf("calls=%d, want 12", got)
	}

	want := []time.Duration{0, time.Second, 0, 2 * time.Second, 0}
	got := sleeps.all()
	if len(got) != len(want) {
		t.Fatalf("sleeps=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sleeps=%v, want %v", got, want)
		}
	}
	if got := testutil.ToFloat64(f.metrics.RetriesTotal); got != 2 {
		t.Fatalf("retries=%v, want 2", got)
	}
}

func TestFetchAcceptsSmallBodyOnLastAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	f, transport, _ := newTestFetcher(cfg)
	small := "<html><body><h1>小号收纳盒</h1><p>价格 " + strings.Repeat("y", 100) + "</p></body></html>"
	transport.RegisterResponder(http.MethodGet, desktopOffer, htmlResponder(small))

	doc, err := f.Fetch(context.Background(), desktopOffer)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if doc == nil {
		t.Fatalf("expected document")
	}
	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls=%d, want 2", got)
	}
}

func TestFetchHonorsCancellation(t *testing.T) {
	f, transport, _ := newTestFetcher(testConfig())
	transport.RegisterResponder(http.MethodGet, desktopOffer, htmlResponder(productPage("陶瓷马克杯")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, desktopOffer)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context canceled", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls=%d, want 0", got)
	}
}

func TestFetcherDelayWindows(t *testing.T) {
	cfg := config.DefaultConfig()
	f := NewFetcher(cfg, nil, nil)

	for i := 0; i < 50; i++ {
		if d := f.delay(0); d < cfg.FirstDelayMin || d >= cfg.FirstDelayMax {
			t.Fatalf("first delay %v outside [%v, %v)", d, cfg.FirstDelayMin, cfg.FirstDelayMax)
		}
		if d := f.delay(1); d < cfg.RetryDelayMin || d >= cfg.RetryDelayMax {
			t.Fatalf("retry delay %v outside [%v, %v)", d, cfg.RetryDelayMin, cfg.RetryDelayMax)
		}
	}
}

func TestInspectPage(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		errorTitle bool
		captcha    bool
		product    bool
	}{
		{name: "offer", html: "<title>手机壳</title><p>价格 起订量</p>", product: true},
		{name: "error title", html: "<title>404 Not Found</title><p>价格</p>", errorTitle: true, product: true},
		{name: "captcha", html: "<p>请完成人机验证</p>", captcha: true},
		{name: "captcha in script ignored", html: "<script>var captcha = 1;</script><p>供应商</p>", product: true},
		{name: "empty", html: "<p>hello</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := models.NewDocument(desktopOffer, "", http.StatusOK, []byte("<html><head></head><body>"+tt.html+"</body></html>"))
			if err != nil {
				t.Fatalf("new document: %v", err)
			}
			h := inspectPage(doc)
			if h.errorTitle != tt.errorTitle || h.captcha != tt.captcha || h.product != tt.product {
				t.Fatalf("health=%+v, want errorTitle=%v captcha=%v product=%v", h, tt.errorTitle, tt.captcha, tt.product)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "other"},
		{name: "canceled", err: context.Canceled, statusCode: 0, expected: "canceled"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestErrorTypeLabelForPageErrors(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{err: ErrBlocked{Err: errors.New("x")}, expected: "blocked"},
		{err: ErrLoginRequired{Err: errors.New("x")}, expected: "login_required"},
		{err: ErrErrorPage{Err: errors.New("x")}, expected: "error_page"},
		{err: ErrTooSmall{Err: errors.New("x")}, expected: "too_small"},
		{err: ErrNoProductContent{Err: errors.New("x")}, expected: "no_product_content"},
		{err: &FetchError{URL: desktopOffer, Attempts: 3, Err: ErrBlocked{Err: errors.New("x")}}, expected: "blocked"},
		{err: &FetchError{URL: desktopOffer, Attempts: 3}, expected: "exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}
