package extract

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var titleSelectors = []string{
	`[data-testid="product-title"]`,
	`.offer-title`,
	`.product-title`,
	`.product-name`,
	`.detail-title`,
	`.offer-detail-title`,
	`.fd-clr-title`,
	`[class*="title"] h1`,
	`[class*="Title"] h1`,

	`h1[data-spm-anchor-id]`,
	`.product-title h1`,
	`.offer-title h1`,
	`h1.product-name`,
	`.mod-detail-title h1`,
	`.mod-detail-title`,

	`h1`,
	`[class*="product"][class*="title"]`,
	`[class*="offer"][class*="title"]`,
}

var priceSelectors = []string{
	`.price-range .price-value`,
	`.price .price-value`,
	`.mod-price .price-value`,
	`.offer-price .price-original`,
	`.price-original`,
	`.price-now`,
	`[data-role="price"]`,
	`.price-text`,
}

var imageSelectors = []string{
	`.mod-detail-gallery img`,
	`.detail-gallery img`,
	`.product-images img`,
	`.offer-image img`,
	`.main-image img`,
	`.preview-image img`,
}

var descriptionSelectors = []string{
	`[data-testid="product-description"]`,
	`.product-detail-description`,
	`.offer-detail-description`,
	`.detail-desc`,
	`.product-desc`,
	`.offer-desc`,
	`.description-content`,
	`.product-introduction`,

	`.mod-detail-description`,
	`.product-description`,
	`.offer-description`,
	`.detail-description`,
	`.mod-detail-info .text`,
	`.product-info .desc`,

	// mobile
	`.mobile-desc`,
	`.m-desc`,
	`.desc-wrap`,
	`.detail-wrap .desc`,

	`[class*="desc"]`,
	`[class*="description"]`,
	`.content-wrap .content`,
}

var featureSelectors = []string{
	`.product-features li`,
	`.selling-points li`,
	`.product-highlights li`,
	`.feature-list li`,
	`.advantages li`,
	`.key-features li`,

	`.m-features li`,
	`.mobile-features li`,

	`[class*="feature"] li`,
	`[class*="highlight"] li`,
	`[class*="advantage"] li`,
	`.desc-list li`,
	`.point-list li`,
}

// Desktop, mobile, then class-pattern variants.
var specTableSelectors = []string{
	`.mod-detail-attributes table`,
	`.product-params table`,
	`.spec-table`,
	`.product-attributes table`,
	`.offer-attributes table`,
	`.detail-attributes table`,

	`.m-params table`,
	`.mobile-params table`,
	`.m-spec-table`,
	`.spec-list`,
	`.param-list`,
	`.m-attributes`,
	`.mobile-attributes`,

	`[class*="param"] table`,
	`[class*="spec"] table`,
	`[class*="attribute"] table`,
	`.props-list`,
	`.property-list`,
}

var specListSelectors = []string{
	`.product-attributes dl`,
	`.spec-list dl`,
	`.params-list dl`,
	`.m-params dl`,
	`.mobile-params dl`,
}

type selector struct {
	raw string
	sel cascadia.Sel
}

func compileSelectors(logger *slog.Logger, raws []string) []selector {
	out := make([]selector, 0, len(raws))
	for _, raw := range raws {
		sel, err := cascadia.Parse(raw)
		if err != nil {
			logger.Warn("skipping invalid selector",
				slog.String("selector", raw),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, selector{raw: raw, sel: sel})
	}
	return out
}

// nodes returns every match in document order.
func (s selector) nodes(doc *models.Document) []*html.Node {
	root := documentRoot(doc.Doc)
	if root == nil {
		return nil
	}
	return cascadia.QueryAll(root, s.sel)
}

// find wraps the matches in a goquery selection.
func (s selector) find(doc *models.Document) *goquery.Selection {
	return doc.Doc.FindNodes(s.nodes(doc)...)
}

// first returns the first match or nil.
func (s selector) first(doc *models.Document) *html.Node {
	root := documentRoot(doc.Doc)
	if root == nil {
		return nil
	}
	return cascadia.Query(root, s.sel)
}
