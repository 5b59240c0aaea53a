package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-1688/config"
	"github.com/aluiziolira/go-scrape-1688/models"
)

const store = "https://shop.example.com"

func sampleRecord() *models.ProductRecord {
	id := "793064484013"
	return &models.ProductRecord{
		SourceURL:   "https://detail.1688.com/offer/793064484013.html",
		ProductID:   &id,
		Title:       "优质硅胶手机壳批发",
		Price:       "¥12.50",
		Images:      []string{"https://cbu01.alicdn.com/img/ibank/a.jpg"},
		Description: strings.Repeat("硅", 200),
		Specifications: map[string]string{
			"颜色": "黑色",
			"材质": "<硅胶>",
		},
		ScrapedAt: "2024-05-01 08:30:00",
	}
}

func newTestClient(t *testing.T, external bool) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c, err := NewClient(config.UploadConfig{
		URL:            store + "/",
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
		ExternalImages: external,
		CategoryID:     1,
	}, nil)
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	c.SetTransport(transport)
	return c, transport
}

func TestBuildProduct(t *testing.T) {
	rec := sampleRecord()
	p := BuildProduct(rec, 1, ExternalImages(rec.Images))

	assert.Equal(t, rec.Title, p.Name)
	assert.Equal(t, "simple", p.Type)
	assert.Equal(t, "12.50", p.RegularPrice)
	assert.Equal(t, "11.25", p.SalePrice)
	assert.Equal(t, "draft", p.Status)
	assert.Equal(t, []Category{{ID: 1}}, p.Categories)
	assert.Equal(t, 160, len([]rune(p.ShortDescription)))
	require.Len(t, p.Images, 1)
	assert.Equal(t, "商品图片_1", p.Images[0].Name)
	assert.Equal(t, []Meta{
		{Key: "_1688_source_url", Value: rec.SourceURL},
		{Key: "_1688_product_id", Value: "793064484013"},
		{Key: "_scraped_at", Value: "2024-05-01 08:30:00"},
	}, p.MetaData)
}

func TestBuildProductOnInquiryPrice(t *testing.T) {
	rec := sampleRecord()
	rec.Price = models.PriceOnInquiry
	rec.ProductID = nil

	p := BuildProduct(rec, 1, nil)
	assert.Equal(t, "0.00", p.RegularPrice)
	assert.Equal(t, "0.00", p.SalePrice)
	assert.NotNil(t, p.Images)
	assert.Equal(t, "", p.MetaData[1].Value)
}

func TestFormatDescription(t *testing.T) {
	rec := sampleRecord()
	rec.Description = "硅胶材质"

	got := FormatDescription(rec)

	assert.True(t, strings.HasPrefix(got, "<p>硅胶材质</p><h3>产品规格</h3><ul>"))
	assert.Contains(t, got, "<li><strong>材质:</strong> &lt;硅胶&gt;</li><li><strong>颜色:</strong> 黑色</li>")
	assert.Contains(t, got, "商品信息来源：1688平台")
	assert.Contains(t, got, "href='"+rec.SourceURL+"'")
}

func TestFormatDescriptionWithoutSpecs(t *testing.T) {
	rec := sampleRecord()
	rec.Description = ""
	rec.Specifications = map[string]string{}

	got := FormatDescription(rec)
	assert.NotContains(t, got, "产品规格")
	assert.True(t, strings.HasPrefix(got, "<hr>"))
}

func TestValidExternalImage(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://cbu01.alicdn.com/img/ibank/a.jpg", want: true},
		{url: "https://img.example.com/photo.webp?x=1", want: true},
		{url: "https://sc04.alicdn.com/kf/H123", want: true},
		{url: "https://example.com/page", want: false},
		{url: "ftp://example.com/a.jpg", want: false},
		{url: "a.jpg", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidExternalImage(tt.url))
		})
	}
}

func TestExternalImagesKeepsPositionNames(t *testing.T) {
	images := ExternalImages([]string{"https://example.com/page", "https://img.example.com/b.png"})
	require.Len(t, images, 1)
	assert.Equal(t, "商品图片_2", images[0].Name)
	assert.Equal(t, "商品图片 2", images[0].Alt)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.UploadConfig{URL: store}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		status  int
		wantErr string
	}{
		{status: http.StatusOK},
		{status: http.StatusUnauthorized, wantErr: "API密钥验证失败"},
		{status: http.StatusForbidden, wantErr: "权限不足"},
		{status: http.StatusNotFound, wantErr: "API端点不存在"},
		{status: http.StatusInternalServerError, wantErr: "连接失败: HTTP 500"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			c, transport := newTestClient(t, true)
			transport.RegisterResponder(http.MethodGet, store+productsPath+"?per_page=1",
				httpmock.NewStringResponder(tt.status, "[]"))

			err := c.TestConnection(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Contains(t, apiErr.Message, tt.wantErr)
		})
	}
}

func TestUploadCreatesDraftProduct(t *testing.T) {
	c, transport := newTestClient(t, true)
	transport.RegisterResponder(http.MethodGet, store+productsPath+"?per_page=1",
		httpmock.NewStringResponder(http.StatusOK, "[]"))

	var sent ProductPayload
	var user, pass string
	transport.RegisterResponder(http.MethodPost, store+productsPath, func(req *http.Request) (*http.Response, error) {
		user, pass, _ = req.BasicAuth()
		if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusCreated, `{"id": 42, "permalink": "https://shop.example.com/?p=42"}`), nil
	})

	result, err := c.Upload(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.ID)
	assert.Equal(t, "https://shop.example.com/?p=42", result.Permalink)
	assert.Equal(t, "ck_test", user)
	assert.Equal(t, "cs_test", pass)
	assert.Equal(t, "优质硅胶手机壳批发", sent.Name)
	assert.Equal(t, "draft", sent.Status)
	require.Len(t, sent.Images, 1)
	assert.Equal(t, "https://cbu01.alicdn.com/img/ibank/a.jpg", sent.Images[0].Src)
}

func TestUploadReportsAPIMessage(t *testing.T) {
	c, transport := newTestClient(t, true)
	transport.RegisterResponder(http.MethodGet, store+productsPath+"?per_page=1",
		httpmock.NewStringResponder(http.StatusOK, "[]"))
	transport.RegisterResponder(http.MethodPost, store+productsPath,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"code":"woocommerce_rest_invalid","message":"无效的价格"}`))

	_, err := c.Upload(context.Background(), sampleRecord())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "无效的价格", apiErr.Message)
}

func TestUploadStopsWhenConnectionFails(t *testing.T) {
	c, transport := newTestClient(t, true)
	transport.RegisterResponder(http.MethodGet, store+productsPath+"?per_page=1",
		httpmock.NewStringResponder(http.StatusUnauthorized, ""))

	_, err := c.Upload(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "连接失败")
	assert.Equal(t, 0, transport.GetCallCountInfo()["POST "+store+productsPath])
}

func TestUploadWithMediaLibrary(t *testing.T) {
	c, transport := newTestClient(t, false)
	rec := sampleRecord()

	transport.RegisterResponder(http.MethodGet, store+productsPath+"?per_page=1",
		httpmock.NewStringResponder(http.StatusOK, "[]"))
	transport.RegisterResponder(http.MethodGet, rec.Images[0], func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(http.StatusOK, []byte{0xff, 0xd8, 0xff})
		resp.Header.Set("Content-Type", "image/jpeg")
		return resp, nil
	})
	transport.RegisterResponder(http.MethodPost, store+mediaPath, func(req *http.Request) (*http.Response, error) {
		if !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusCreated, `{"id": 7}`), nil
	})

	var sent ProductPayload
	transport.RegisterResponder(http.MethodPost, store+productsPath, func(req *http.Request) (*http.Response, error) {
		_ = json.NewDecoder(req.Body).Decode(&sent)
		return httpmock.NewStringResponse(http.StatusCreated, `{"id": 43}`), nil
	})

	_, err := c.Upload(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, sent.Images, 1)
	assert.Equal(t, int64(7), sent.Images[0].ID)
}

func TestErrorMessageTruncatesByCharacter(t *testing.T) {
	body := []byte(strings.Repeat("错", 250))

	got := errorMessage(body)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 200, utf8.RuneCountInString(got))
}

func registerDiagnosis(transport *httpmock.MockTransport, mediaStatus int) {
	for _, path := range []string{productsPath, categoriesPath} {
		transport.RegisterResponder(http.MethodGet, store+path+"?per_page=1",
			httpmock.NewStringResponder(http.StatusOK, "[]"))
	}
	transport.RegisterResponder(http.MethodGet, store+mediaPath+"?per_page=1",
		httpmock.NewStringResponder(mediaStatus, "[]"))
	transport.RegisterResponder(http.MethodGet, store+systemStatusPath,
		httpmock.NewStringResponder(http.StatusOK, `{"environment":{"wp_version":"6.5","wc_version":"8.9"}}`))
}

func TestDiagnoseMediaLibrary(t *testing.T) {
	c, transport := newTestClient(t, false)
	registerDiagnosis(transport, http.StatusForbidden)

	checks, err := c.Diagnose(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 4)

	assert.Equal(t, CheckOK, checks[0].Status)
	assert.Equal(t, CheckOK, checks[1].Status)
	assert.Equal(t, CheckWarning, checks[2].Status)
	assert.Equal(t, "⚠️ 媒体库访问: 权限不足 (HTTP 403)", checks[2].String())
	assert.Equal(t, "✅ 系统信息: WordPress 6.5, WooCommerce 8.9", checks[3].String())
}

func TestDiagnoseSkipsMediaForExternalImages(t *testing.T) {
	c, transport := newTestClient(t, true)
	registerDiagnosis(transport, http.StatusOK)

	checks, err := c.Diagnose(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 4)
	assert.Equal(t, CheckSkipped, checks[2].Status)
	assert.Equal(t, 0, transport.GetCallCountInfo()["GET "+store+mediaPath+"?per_page=1"])
}

func TestDiagnoseStopsWhenConnectionFails(t *testing.T) {
	c, transport := newTestClient(t, true)
	transport.RegisterResponder(http.MethodGet, store+productsPath+"?per_page=1",
		httpmock.NewStringResponder(http.StatusUnauthorized, ""))

	checks, err := c.Diagnose(context.Background())
	assert.Nil(t, checks)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
