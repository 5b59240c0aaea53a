package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var (
	descriptionNoise       = []string{"javascript", "function", "error", "undefined", "script"}
	descriptionScriptNoise = []string{"function", "undefined", "null", "error", "script"}
	descriptionJSONKeys    = []string{"description", "productDescription", "desc", "content", "summary"}

	descriptionScriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"description"\s*:\s*"([^"]{20,500})"`),
		regexp.MustCompile(`(?i)"productDescription"\s*:\s*"([^"]{20,500})"`),
		regexp.MustCompile(`(?i)"desc"\s*:\s*"([^"]{20,500})"`),
		regexp.MustCompile(`(?i)'description'\s*:\s*'([^']{20,500})'`),
		regexp.MustCompile(`(?i)'productDescription'\s*:\s*'([^']{20,500})'`),
		regexp.MustCompile(`(?i)'desc'\s*:\s*'([^']{20,500})'`),
	}
)

const (
	featureIntro        = "产品特点："
	featureSeparator    = "；"
	featuresInSummary   = 5
	titleSentenceFormat = "这是一款%s。商品来自1688平台，详细信息请查看原链接。"
)

// Description returns cleaned product prose. When the page carries none it is
// synthesized from features, then from the title, then the missing sentinel.
func (e *Extractor) Description(doc *models.Document, title string, features []string) string {
	if desc, ok := cascade(e.logger, "description", doc, e.description); ok {
		return CleanDescription(desc)
	}
	if len(features) > 0 {
		top := features[:min(len(features), featuresInSummary)]
		return CleanDescription(featureIntro + strings.Join(top, featureSeparator))
	}
	if title != "" && title != models.TitleNotFound {
		return CleanDescription(fmt.Sprintf(titleSentenceFormat, title))
	}
	return models.DescriptionMissing
}

func (e *Extractor) descriptionStrategies() []Strategy[string] {
	selectors := compileSelectors(e.logger, descriptionSelectors)
	return []Strategy[string]{
		{Name: "selector", Run: func(doc *models.Document) (string, bool) {
			for _, s := range selectors {
				for _, n := range s.nodes(doc) {
					text := strippedText(n)
					if within(text, 10, 2000) && !containsAny(text, descriptionNoise) {
						return text, true
					}
				}
			}
			return "", false
		}},
		{Name: "meta", Run: func(doc *models.Document) (string, bool) {
			var content string
			found := false
			doc.Doc.Find("meta").EachWithBreak(func(_ int, m *goquery.Selection) bool {
				if name, _ := m.Attr("name"); name != "description" {
					return true
				}
				content, found = m.Attr("content")
				return false
			})
			content = strings.TrimSpace(content)
			return content, found && runeLen(content) > 10
		}},
		{Name: "json_ld", Run: func(doc *models.Document) (string, bool) {
			for _, v := range ldDocuments(scripts(doc.Doc, "application/ld+json")) {
				if desc, ok := findString(v, descriptionJSONKeys, func(s string) bool {
					return runeLen(s) > 10
				}); ok {
					return desc, true
				}
			}
			return "", false
		}},
		{Name: "script", Run: func(doc *models.Document) (string, bool) {
			for _, body := range scripts(doc.Doc, "") {
				for _, re := range descriptionScriptPatterns {
					for _, m := range re.FindAllStringSubmatch(body, -1) {
						if runeLen(strings.TrimSpace(m[1])) > 10 && !containsAny(m[1], descriptionScriptNoise) {
							return m[1], true
						}
					}
				}
			}
			return "", false
		}},
	}
}
