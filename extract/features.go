package extract

import (
	"slices"

	"github.com/aluiziolira/go-scrape-1688/models"
)

var featureNoise = []string{"function", "undefined", "null", "error", "script", "click"}

// Features returns up to eight selling points. The scan stops after the
// first selector list that brings the total to eight.
func (e *Extractor) Features(doc *models.Document) []string {
	features, _ := attempt(e.logger, "features", Strategy[[]string]{
		Name: "selector",
		Run: func(doc *models.Document) ([]string, bool) {
			var out []string
			for _, s := range e.features {
				for _, n := range s.nodes(doc) {
					text := strippedText(n)
					if !within(text, 5, 200) || containsAny(text, featureNoise) {
						continue
					}
					if !slices.Contains(out, text) {
						out = append(out, text)
					}
				}
				if len(out) >= models.MaxFeatures {
					break
				}
			}
			return out, len(out) > 0
		},
	}, doc)
	if len(features) > models.MaxFeatures {
		features = features[:models.MaxFeatures]
	}
	return features
}
