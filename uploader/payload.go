// Package uploader publishes scraped products to a WooCommerce store through
// its wc/v3 REST API.
package uploader

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-1688/models"
	"github.com/aluiziolira/go-scrape-1688/parser"
)

const (
	shortDescriptionRunes = 160
	saleRatio             = 0.9
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	imageHosts      = []string{"img.alicdn.com", "cbu01.alicdn.com", "sc04.alicdn.com"}
)

// ProductPayload is the body of a product creation request.
type ProductPayload struct {
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	RegularPrice      string     `json:"regular_price"`
	SalePrice         string     `json:"sale_price"`
	Description       string     `json:"description"`
	ShortDescription  string     `json:"short_description"`
	Categories        []Category `json:"categories"`
	Images            []Image    `json:"images"`
	Status            string     `json:"status"`
	Featured          bool       `json:"featured"`
	CatalogVisibility string     `json:"catalog_visibility"`
	MetaData          []Meta     `json:"meta_data"`
}

// Category references a store category by id.
type Category struct {
	ID int `json:"id"`
}

// Image is a product image, either an external URL or an uploaded media id.
type Image struct {
	ID   int64  `json:"id,omitempty"`
	Src  string `json:"src,omitempty"`
	Name string `json:"name"`
	Alt  string `json:"alt"`
}

// Meta is one custom field stored on the remote product.
type Meta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BuildProduct maps a record to a draft product. images is the already
// prepared image list.
func BuildProduct(rec *models.ProductRecord, categoryID int, images []Image) ProductPayload {
	amount := parser.PriceAmount(rec.Price)
	if images == nil {
		images = []Image{}
	}
	return ProductPayload{
		Name:              rec.Title,
		Type:              "simple",
		RegularPrice:      parser.FormatAmount(amount),
		SalePrice:         parser.FormatAmount(amount * saleRatio),
		Description:       FormatDescription(rec),
		ShortDescription:  truncateRunes(rec.Description, shortDescriptionRunes),
		Categories:        []Category{{ID: categoryID}},
		Images:            images,
		Status:            "draft",
		CatalogVisibility: "visible",
		MetaData: []Meta{
			{Key: "_1688_source_url", Value: rec.SourceURL},
			{Key: "_1688_product_id", Value: rec.ID()},
			{Key: "_scraped_at", Value: rec.ScrapedAt},
		},
	}
}

// ExternalImages references up to ten valid image URLs directly.
func ExternalImages(urls []string) []Image {
	images := make([]Image, 0, models.MaxImages)
	for i, u := range urls {
		if i == models.MaxImages {
			break
		}
		if !ValidExternalImage(u) {
			continue
		}
		images = append(images, Image{
			Src:  u,
			Name: fmt.Sprintf("商品图片_%d", i+1),
			Alt:  fmt.Sprintf("商品图片 %d", i+1),
		})
	}
	return images
}

// ValidExternalImage accepts http(s) URLs that name an image file or live on
// a known image CDN.
func ValidExternalImage(u string) bool {
	if len(u) < 10 {
		return false
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, host := range imageHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// FormatDescription renders the description, a specification list sorted by
// key and a source footer as HTML.
func FormatDescription(rec *models.ProductRecord) string {
	var b strings.Builder
	if rec.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(rec.Description))
	}

	if len(rec.Specifications) > 0 {
		keys := make([]string, 0, len(rec.Specifications))
		for k := range rec.Specifications {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("<h3>产品规格</h3><ul>")
		for _, k := range keys {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>",
				html.EscapeString(k), html.EscapeString(rec.Specifications[k]))
		}
		b.WriteString("</ul>")
	}

	b.WriteString("<hr><p><small>商品信息来源：1688平台</small></p>")
	if rec.SourceURL != "" {
		fmt.Fprintf(&b, "<p><small>原链接：<a href='%s' target='_blank'>查看原商品</a></small></p>",
			html.EscapeString(rec.SourceURL))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
