package extract

import (
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var (
	priceText   = regexp.MustCompile(`[¥$￥]?\s*[\d,]+\.?\d*`)
	priceScript = regexp.MustCompile(`"price[^"]*":\s*"?([¥$￥]?\s*[\d,]+\.?\d*)"?`)
	hasDigit    = regexp.MustCompile(`\d`)
)

// Price returns the displayed price text or the on-inquiry sentinel.
func (e *Extractor) Price(doc *models.Document) string {
	if price, ok := cascade(e.logger, "price", doc, e.price); ok {
		return price
	}
	return models.PriceOnInquiry
}

func (e *Extractor) priceStrategies() []Strategy[string] {
	selectors := compileSelectors(e.logger, priceSelectors)
	return []Strategy[string]{
		{Name: "selector", Run: func(doc *models.Document) (string, bool) {
			for _, s := range selectors {
				n := s.first(doc)
				if n == nil {
					continue
				}
				if m := priceText.FindString(strippedText(n)); hasDigit.MatchString(m) {
					return m, true
				}
			}
			return "", false
		}},
		{Name: "script", Run: func(doc *models.Document) (string, bool) {
			for _, body := range scripts(doc.Doc, "") {
				if !strings.Contains(strings.ToLower(body), "price") {
					continue
				}
				for _, m := range priceScript.FindAllStringSubmatch(body, -1) {
					if hasDigit.MatchString(m[1]) {
						return m[1], true
					}
				}
			}
			return "", false
		}},
	}
}
