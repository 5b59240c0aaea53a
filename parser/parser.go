package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var (
	currencyGlyphs = regexp.MustCompile(`[¥$￥\s]`)
	priceToken     = regexp.MustCompile(`[\d,]+\.?\d*`)
)

// ValidateRecord ensures a product record honours the output bounds.
func ValidateRecord(p *models.ProductRecord) error {
	if p == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("record missing title for %s", p.SourceURL)
	}
	if strings.TrimSpace(p.Price) == "" {
		return fmt.Errorf("record missing price for %s", p.SourceURL)
	}
	if len(p.Images) > models.MaxImages {
		return fmt.Errorf("record has %d images, limit is %d", len(p.Images), models.MaxImages)
	}
	for k, v := range p.Specifications {
		if utf8.RuneCountInString(k) > 50 || utf8.RuneCountInString(v) > 200 {
			return fmt.Errorf("specification %q exceeds length bounds", k)
		}
	}
	return nil
}

// PriceAmount converts price text such as "¥1,280.50" to a number. Unparseable
// text yields 0.
func PriceAmount(price string) float64 {
	cleaned := currencyGlyphs.ReplaceAllString(price, "")
	token := priceToken.FindString(cleaned)
	if token == "" {
		return 0
	}
	token = strings.ReplaceAll(token, ",", "")
	amount, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}
	return amount
}

// FormatAmount renders an amount with two decimals.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
