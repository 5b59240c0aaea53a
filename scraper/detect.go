package scraper

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-1688/extract"
	"github.com/aluiziolira/go-scrape-1688/models"
)

var (
	loginMarkers       = []string{"login", "passport"}
	errorTitleKeywords = []string{"页面不存在", "404", "网页错误", "page not found", "服务器错误", "访问被拒绝"}
	captchaMarkers     = []string{"验证码", "captcha", "人机验证"}
	productIndicators  = []string{"产品", "价格", "起订量", "厂家", "供应商"}
)

func isLoginWall(finalURL string) bool {
	for _, m := range loginMarkers {
		if strings.Contains(finalURL, m) {
			return true
		}
	}
	return false
}

// pageHealth inspects a parsed page for the markers of a non-offer response.
type pageHealth struct {
	title      string
	errorTitle bool
	captcha    bool
	product    bool
}

func inspectPage(doc *models.Document) pageHealth {
	var h pageHealth
	if title := doc.Doc.Find("title").First(); title.Length() > 0 {
		h.title = strings.TrimSpace(title.Text())
		lower := strings.ToLower(h.title)
		for _, kw := range errorTitleKeywords {
			if strings.Contains(lower, kw) {
				h.errorTitle = true
				break
			}
		}
	}

	text := strings.ToLower(extract.PageText(doc.Doc))
	for _, m := range captchaMarkers {
		if strings.Contains(text, m) {
			h.captcha = true
			break
		}
	}
	for _, m := range productIndicators {
		if strings.Contains(text, m) {
			h.product = true
			break
		}
	}
	return h
}

func (h pageHealth) errorPage() error {
	return ErrErrorPage{Err: fmt.Errorf("page title %q", truncate(h.title, 100))}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
