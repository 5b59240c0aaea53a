package uploader

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-1688/config"
	"github.com/aluiziolira/go-scrape-1688/models"
)

const (
	productsPath = "/wp-json/wc/v3/products"
	mediaPath    = "/wp-json/wp/v2/media"
	downloadUA   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	errorBodyRunes = 200
)

// ErrNotConfigured is returned when the store URL or credentials are missing.
var ErrNotConfigured = errors.New("uploader: store url and credentials are required")

// APIError is a non-success response from the store.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Result describes a created product.
type Result struct {
	ID        int64  `json:"id"`
	Permalink string `json:"permalink"`
}

// Client talks to one WooCommerce store.
type Client struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	externalImages bool
	categoryID     int

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient builds a client from the upload settings.
func NewClient(cfg config.UploadConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		externalImages: cfg.ExternalImages,
		categoryID:     cfg.CategoryID,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		logger:         logger.With("component", "uploader"),
	}, nil
}

// SetTransport replaces the HTTP transport.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// TestConnection lists a single product to verify the URL and credentials.
// The returned error carries a message suitable for end users.
func (c *Client) TestConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, productsPath+"?per_page=1", nil, "")
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.New(transportMessage(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return &APIError{StatusCode: resp.StatusCode, Message: "API密钥验证失败，请检查Consumer Key和Secret"}
	case http.StatusForbidden:
		return &APIError{StatusCode: resp.StatusCode, Message: "权限不足，请检查API密钥权限设置"}
	case http.StatusNotFound:
		return &APIError{StatusCode: resp.StatusCode, Message: "API端点不存在，请检查网站URL是否正确"}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("连接失败: HTTP %d", resp.StatusCode)}
	}
}

// Upload creates a draft product from rec after checking the connection.
func (c *Client) Upload(ctx context.Context, rec *models.ProductRecord) (*Result, error) {
	if rec == nil {
		return nil, errors.New("uploader: nil record")
	}
	logger := c.logger.With(slog.String("url", rec.SourceURL))
	logger.Info("uploading product", slog.String("title", rec.Title))

	if err := c.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}

	payload := BuildProduct(rec, c.categoryID, c.images(ctx, rec.Images))
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, productsPath, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("上传过程中发生错误: %s", transportMessage(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		logger.Error("upload rejected", slog.Int("status", resp.StatusCode), slog.String("message", apiErr.Message))
		return nil, apiErr
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	logger.Info("product uploaded", slog.Int64("remote_id", result.ID), slog.String("permalink", result.Permalink))
	return &result, nil
}

func (c *Client) images(ctx context.Context, urls []string) []Image {
	if c.externalImages {
		return ExternalImages(urls)
	}

	images := make([]Image, 0, models.MaxImages)
	for i, u := range urls {
		if i == models.MaxImages {
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			break
		}
		name := fmt.Sprintf("product_image_%d_%d.jpg", time.Now().Unix(), i+1)
		id, err := c.uploadMedia(ctx, u, name)
		if err != nil {
			c.logger.Warn("image upload failed", slog.String("image", u), slog.Any("error", err))
			continue
		}
		images = append(images, Image{ID: id, Src: u, Name: name, Alt: fmt.Sprintf("商品图片 %d", i+1)})
	}
	return images
}

// uploadMedia downloads imageURL and stores it in the media library.
func (c *Client) uploadMedia(ctx context.Context, imageURL, filename string) (int64, error) {
	data, err := c.download(ctx, imageURL)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("write form file: %w", err)
	}
	if err := form.Close(); err != nil {
		return 0, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, mediaPath, &buf, form.FormDataContentType())
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read media response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return 0, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	var media struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &media); err != nil {
		return 0, fmt.Errorf("decode media: %w", err)
	}
	return media.ID, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUA)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("download image: content type %q is not an image", ct)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// errorMessage prefers the API's message field and falls back to the first
// 200 characters of the body.
func errorMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if len(body) == 0 {
		return "上传失败"
	}
	return truncateRunes(strings.ToValidUTF8(string(body), ""), errorBodyRunes)
}

func transportMessage(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "连接超时，请检查网络或服务器状态"
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return "SSL证书验证失败，请检查网站HTTPS配置"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "无法连接到服务器，请检查网站URL是否正确"
	}
	return fmt.Sprintf("连接错误: %v", err)
}
