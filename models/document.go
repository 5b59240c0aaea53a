package models

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Document is a fetched and parsed page.
type Document struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Doc        *goquery.Document
}

// NewDocument parses body as HTML.
func NewDocument(requested, final string, status int, body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if final == "" {
		final = requested
	}
	return &Document{
		URL:        requested,
		FinalURL:   final,
		StatusCode: status,
		HTML:       string(body),
		Doc:        doc,
	}, nil
}

// BaseURL is the URL relative references resolve against.
func (d *Document) BaseURL() *url.URL {
	if d == nil {
		return nil
	}
	for _, raw := range []string{d.FinalURL, d.URL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u
		}
	}
	return nil
}
