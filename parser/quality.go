package parser

import (
	"fmt"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-1688/models"
)

// Point allocation per criterion. Totals 10.
const (
	titlePoints       = 3
	pricePoints       = 2
	imagePoints       = 3
	descriptionPoints = 1
	specPoints        = 1
	maxScore          = 10
)

// Score rates how complete the extracted fields are.
func Score(f models.Fields, sourceURL string) models.Quality {
	score := 0
	details := make([]string, 0, 5)

	if f.Title != "" && f.Title != models.TitleNotFound && utf8.RuneCountInString(f.Title) > 5 {
		score += titlePoints
		details = append(details, "✓ 标题获取成功")
	} else {
		details = append(details, "✗ 标题获取失败")
	}

	if f.Price != "" && f.Price != models.PriceOnInquiry {
		score += pricePoints
		details = append(details, "✓ 价格获取成功")
	} else {
		details = append(details, "✗ 价格获取失败")
	}

	if len(f.Images) > 0 {
		score += imagePoints
		details = append(details, fmt.Sprintf("✓ 获取到 %d 张图片", len(f.Images)))
	} else {
		details = append(details, "✗ 图片获取失败")
	}

	if utf8.RuneCountInString(f.Description) > 10 {
		score += descriptionPoints
		details = append(details, "✓ 描述获取成功")
	} else {
		details = append(details, "✗ 描述获取失败")
	}

	if len(f.Specifications) > 0 {
		score += specPoints
		details = append(details, fmt.Sprintf("✓ 获取到 %d 个规格参数", len(f.Specifications)))
	} else {
		details = append(details, "✗ 规格参数获取失败")
	}

	score = min(max(score, 0), maxScore)

	method := models.MethodDesktop
	if IsMobileHost(sourceURL) {
		method = models.MethodMobile
	}

	return models.Quality{
		QualityScore:     fmt.Sprintf("%d/10", score),
		Score:            score,
		Details:          details,
		ExtractionMethod: method,
		Platform:         models.Platform,
	}
}
