package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var (
	titleNoise       = []string{"javascript", "function", "error", "undefined"}
	titleScriptNoise = []string{"function", "undefined", "null", "error"}

	titleSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`[-–—].*?(阿里巴巴|1688|中国制造网|批发网).*?$`),
		regexp.MustCompile(`_.*?(阿里巴巴|1688).*?$`),
	}

	titleScriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"title"\s*:\s*"([^"]{10,100})"`),
		regexp.MustCompile(`(?i)"productName"\s*:\s*"([^"]{10,100})"`),
		regexp.MustCompile(`(?i)"name"\s*:\s*"([^"]{10,100})"`),
		regexp.MustCompile(`(?i)'title'\s*:\s*'([^']{10,100})'`),
		regexp.MustCompile(`(?i)'productName'\s*:\s*'([^']{10,100})'`),
		regexp.MustCompile(`(?i)'name'\s*:\s*'([^']{10,100})'`),
	}
)

// Title returns the product name or the not-found sentinel.
func (e *Extractor) Title(doc *models.Document) string {
	if title, ok := cascade(e.logger, "title", doc, e.title); ok {
		return title
	}
	e.logger.Warn("title not found", slog.String("url", docURL(doc)))
	return models.TitleNotFound
}

func (e *Extractor) titleStrategies() []Strategy[string] {
	selectors := compileSelectors(e.logger, titleSelectors)
	return []Strategy[string]{
		{Name: "selector", Run: func(doc *models.Document) (string, bool) {
			for _, s := range selectors {
				for _, n := range s.nodes(doc) {
					text := strippedText(n)
					if within(text, 5, 200) && !containsAny(text, titleNoise) {
						return text, true
					}
				}
			}
			return "", false
		}},
		{Name: "title_tag", Run: titleFromTitleTag},
		{Name: "json_ld", Run: func(doc *models.Document) (string, bool) {
			for _, v := range ldDocuments(scripts(doc.Doc, "application/ld+json")) {
				if name, ok := findString(v, []string{"name"}, func(s string) bool {
					return strings.TrimSpace(s) != ""
				}); ok {
					return strings.TrimSpace(name), true
				}
			}
			return "", false
		}},
		{Name: "script", Run: func(doc *models.Document) (string, bool) {
			for _, body := range scripts(doc.Doc, "") {
				for _, re := range titleScriptPatterns {
					for _, m := range re.FindAllStringSubmatch(body, -1) {
						candidate := strings.TrimSpace(m[1])
						if runeLen(candidate) > 5 && !containsAny(candidate, titleScriptNoise) {
							return candidate, true
						}
					}
				}
			}
			return "", false
		}},
	}
}

func titleFromTitleTag(doc *models.Document) (string, bool) {
	node := doc.Doc.Find("title").First()
	if node.Length() == 0 {
		return "", false
	}
	title := strings.TrimSpace(rawText(node.Nodes[0]))
	for _, re := range titleSuffixes {
		title = strings.TrimSpace(re.ReplaceAllString(title, ""))
	}
	if runeLen(title) > 5 {
		return title, true
	}
	return "", false
}

func docURL(doc *models.Document) string {
	if doc == nil {
		return ""
	}
	return doc.URL
}
