package extract

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-1688/models"
)

const (
	maxSpecKeyRunes   = 50
	maxSpecValueRunes = 200
)

var (
	specRowNoise    = []string{"序号", "number", "index", "操作"}
	specKeyFields   = []string{"key", "label", "title"}
	specValueFields = []string{"value", "val", "content"}
	specKeywords    = []string{"材质", "颜色", "尺寸", "重量", "规格", "型号", "品牌", "产地", "工艺"}
	specNonAnswers  = []string{"", "详见描述", "请咨询客服"}

	specArrayPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)"props"\s*:\s*\[([^\]]+)\]`),
		regexp.MustCompile(`(?is)"attributes"\s*:\s*\[([^\]]+)\]`),
		regexp.MustCompile(`(?is)"params"\s*:\s*\[([^\]]+)\]`),
		regexp.MustCompile(`(?is)"specifications"\s*:\s*\[([^\]]+)\]`),
	}
	specPairPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"name"\s*:\s*"([^"]+)"\s*,\s*"value"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)"key"\s*:\s*"([^"]+)"\s*,\s*"value"\s*:\s*"([^"]+)"`),
	}
	specTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`([^\n\r，。；！？]{2,15})[:：]\s*([^\n\r，。；！？]{1,50})`),
		regexp.MustCompile(`([^\n\r，。；！？]{2,15})\s*[=＝]\s*([^\n\r，。；！？]{1,50})`),
	}
)

// specSet accumulates entries, keeping only pairs within the length bounds.
type specSet map[string]string

func (s specSet) put(key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	if runeLen(key) >= maxSpecKeyRunes || runeLen(value) >= maxSpecValueRunes {
		return
	}
	s[key] = value
}

// Specifications merges attributes from every source. Later sources
// overwrite earlier ones on the same key.
func (e *Extractor) Specifications(doc *models.Document) map[string]string {
	specs := make(specSet)
	collect(e.logger, "specifications", doc, e.specs, func(found map[string]string) {
		for k, v := range found {
			specs.put(k, v)
		}
	})
	if len(specs) == 0 {
		e.logger.Debug("no specifications found", slog.String("url", docURL(doc)))
	}
	return specs
}

func (e *Extractor) specStrategies() []Strategy[map[string]string] {
	tables := compileSelectors(e.logger, specTableSelectors)
	lists := compileSelectors(e.logger, specListSelectors)
	return []Strategy[map[string]string]{
		{Name: "table", Run: func(doc *models.Document) (map[string]string, bool) {
			specs := make(specSet)
			for _, s := range tables {
				s.find(doc).Find("tr").Each(func(_ int, row *goquery.Selection) {
					cells := row.Find("td, th")
					if cells.Length() < 2 {
						return
					}
					key := strippedText(cells.Nodes[0])
					if containsAny(key, specRowNoise) {
						return
					}
					specs.put(key, strippedText(cells.Nodes[1]))
				})
			}
			return specs, len(specs) > 0
		}},
		{Name: "definition_list", Run: func(doc *models.Document) (map[string]string, bool) {
			specs := make(specSet)
			for _, s := range lists {
				s.find(doc).Each(func(_ int, dl *goquery.Selection) {
					dt := dl.Find("dt").First()
					dd := dl.Find("dd").First()
					if dt.Length() == 0 || dd.Length() == 0 {
						return
					}
					specs.put(strippedText(dt.Nodes[0]), strippedText(dd.Nodes[0]))
				})
			}
			return specs, len(specs) > 0
		}},
		{Name: "script_array", Run: specsFromScriptArrays},
		{Name: "script_pairs", Run: func(doc *models.Document) (map[string]string, bool) {
			specs := make(specSet)
			for _, body := range scripts(doc.Doc, "") {
				for _, re := range specPairPatterns {
					for _, m := range re.FindAllStringSubmatch(body, -1) {
						specs.put(m[1], m[2])
					}
				}
			}
			return specs, len(specs) > 0
		}},
		{Name: "free_text", Run: func(doc *models.Document) (map[string]string, bool) {
			specs := make(specSet)
			text := rawText(documentRoot(doc.Doc))
			for _, re := range specTextPatterns {
				for _, m := range re.FindAllStringSubmatch(text, -1) {
					key := strings.TrimSpace(m[1])
					value := strings.TrimSpace(m[2])
					if !containsKeyword(key) {
						continue
					}
					if runeLen(key) < 20 && runeLen(value) < 100 && !slices.Contains(specNonAnswers, value) {
						specs.put(key, value)
					}
				}
			}
			return specs, len(specs) > 0
		}},
	}
}

func specsFromScriptArrays(doc *models.Document) (map[string]string, bool) {
	specs := make(specSet)
	for _, body := range scripts(doc.Doc, "") {
		for _, re := range specArrayPatterns {
			for _, m := range re.FindAllStringSubmatch(body, -1) {
				for _, item := range LooseArray(m[1]) {
					addArrayItem(specs, item)
				}
			}
		}
	}
	return specs, len(specs) > 0
}

func addArrayItem(specs specSet, item map[string]any) {
	name, nameOK := item["name"].(string)
	value, valueOK := item["value"].(string)
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if nameOK && valueOK && name != "" && value != "" &&
		runeLen(name) < maxSpecKeyRunes && runeLen(value) < maxSpecValueRunes {
		specs.put(jsonArtifacts.ReplaceAllString(name, ""), CleanJSONValue(value))
	}

	for _, kf := range specKeyFields {
		for _, vf := range specValueFields {
			k, kOK := scalarString(item[kf])
			v, vOK := scalarString(item[vf])
			if kOK && vOK {
				specs.put(k, v)
			}
		}
	}
}

func containsKeyword(key string) bool {
	for _, kw := range specKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}
