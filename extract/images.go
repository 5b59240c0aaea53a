package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var (
	imageAttrs     = []string{"src", "data-src", "data-original"}
	imageScriptURL = regexp.MustCompile(`(?i)https?://[^"\s]+\.(?:jpg|jpeg|png|gif|webp)`)
	imageRejects   = regexp.MustCompile(`(?i)1x1\.gif|placeholder|loading|icon|logo|btn|bg\.|\.svg$`)
)

// Images returns up to ten distinct gallery image URLs in first-seen order.
func (e *Extractor) Images(doc *models.Document) []string {
	seen := make(map[string]struct{})
	images := make([]string, 0, models.MaxImages)
	collect(e.logger, "images", doc, e.images, func(found []string) {
		for _, u := range found {
			if len(images) == models.MaxImages {
				return
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			images = append(images, u)
		}
	})
	return images
}

func (e *Extractor) imageStrategies() []Strategy[[]string] {
	selectors := compileSelectors(e.logger, imageSelectors)
	return []Strategy[[]string]{
		{Name: "gallery", Run: func(doc *models.Document) ([]string, bool) {
			base := doc.BaseURL()
			var out []string
			for _, s := range selectors {
				s.find(doc).Each(func(_ int, img *goquery.Selection) {
					for _, attr := range imageAttrs {
						raw, _ := img.Attr(attr)
						raw = strings.TrimSpace(raw)
						if raw == "" {
							continue
						}
						if abs := resolveImageURL(base, raw); ValidImageURL(abs) {
							out = append(out, abs)
							return
						}
					}
				})
			}
			return out, len(out) > 0
		}},
		{Name: "script", Run: func(doc *models.Document) ([]string, bool) {
			var out []string
			for _, body := range scripts(doc.Doc, "") {
				for _, u := range imageScriptURL.FindAllString(body, -1) {
					if ValidImageURL(u) {
						out = append(out, u)
					}
				}
			}
			return out, len(out) > 0
		}},
	}
}

// resolveImageURL makes protocol-relative and relative references absolute.
func resolveImageURL(base *url.URL, raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if ref.IsAbs() || base == nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// ValidImageURL rejects placeholders, icons, vector art and non-http URLs.
func ValidImageURL(u string) bool {
	if len(u) < 10 {
		return false
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	return !imageRejects.MatchString(u)
}
