// Package models defines data structures for the scraper.
package models

import (
	"encoding/json"
	"time"
)

// Sentinel values used when a field cannot be recovered.
const (
	TitleNotFound        = "未找到商品标题"
	PriceOnInquiry       = "价格面议"
	DescriptionMissing   = "暂无详细描述"
	Platform             = "1688"
	ScrapedAtLayout      = "2006-01-02 15:04:05"
	MethodDesktop        = "desktop"
	MethodMobile         = "mobile"
	MaxImages            = 10
	MaxFeatures          = 8
	MaxDescriptionLength = 800
)

// Fields is the raw output of the field extractors for one document.
type Fields struct {
	Title          string
	Price          string
	Images         []string
	Description    string
	Specifications map[string]string
	Features       []string
}

// Quality carries extraction diagnostics.
type Quality struct {
	QualityScore     string   `json:"quality_score"`
	Score            int      `json:"score"`
	Details          []string `json:"quality_details"`
	ExtractionMethod string   `json:"extraction_method"`
	Platform         string   `json:"platform"`
}

// ProductRecord is one successfully scraped offer.
type ProductRecord struct {
	SourceURL      string            `csv:"url" json:"url"`
	ProductID      *string           `csv:"product_id" json:"product_id"`
	Title          string            `csv:"title" json:"title"`
	Price          string            `csv:"price" json:"price"`
	Images         []string          `csv:"images" json:"images"`
	Description    string            `csv:"description" json:"description"`
	Specifications map[string]string `csv:"specifications" json:"specifications"`
	ScrapedAt      string            `csv:"scraped_at" json:"scraped_at"`
	Quality        Quality           `csv:"-" json:"debug_info"`
}

// ID returns the product id or an empty string.
func (p *ProductRecord) ID() string {
	if p == nil || p.ProductID == nil {
		return ""
	}
	return *p.ProductID
}

// ErrorRecord describes a scrape that produced no usable document.
type ErrorRecord struct {
	Error     string         `json:"error"`
	DebugInfo map[string]any `json:"debug_info,omitempty"`
}

// Result holds exactly one of Product or Error.
type Result struct {
	Product *ProductRecord
	Error   *ErrorRecord
}

// Success wraps a product record.
func Success(p *ProductRecord) Result {
	return Result{Product: p}
}

// Failure wraps an error record.
func Failure(message string, debug map[string]any) Result {
	return Result{Error: &ErrorRecord{Error: message, DebugInfo: debug}}
}

// OK reports whether the result is a product.
func (r Result) OK() bool {
	return r.Product != nil && r.Error == nil
}

// MarshalJSON emits only the populated variant.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(r.Error)
	}
	if r.Product != nil {
		return json.Marshal(r.Product)
	}
	return []byte("null"), nil
}

// UnmarshalJSON picks the variant by the presence of the error key.
func (r *Result) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Error != nil {
		var rec ErrorRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		*r = Result{Error: &rec}
		return nil
	}
	var rec ProductRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*r = Result{Product: &rec}
	return nil
}

// RunSummary holds the overall result of a batch run.
type RunSummary struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	SuccessCount int
	ErrorCount   int
	FailedURLs   []string
	Uploaded     int
}
