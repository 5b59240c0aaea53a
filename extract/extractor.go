// Package extract recovers product fields from 1688 offer pages.
//
// Every field is an ordered list of strategies. A strategy that fails,
// rejects its candidate or panics is skipped and the next one is tried, so a
// missing field never aborts extraction of the others.
package extract

import (
	"log/slog"

	"github.com/aluiziolira/go-scrape-1688/models"
)

const maxDescriptionRunes = models.MaxDescriptionLength

// Strategy is one way of recovering a field from a document.
type Strategy[T any] struct {
	Name string
	Run  func(*models.Document) (T, bool)
}

// Extractor holds the compiled strategy lists. It is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger

	title       []Strategy[string]
	price       []Strategy[string]
	images      []Strategy[[]string]
	description []Strategy[string]
	specs       []Strategy[map[string]string]
	features    []selector
}

// New compiles every selector list. Selectors that fail to compile are logged
// and dropped.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{logger: logger.With("component", "extract")}

	e.title = e.titleStrategies()
	e.price = e.priceStrategies()
	e.images = e.imageStrategies()
	e.description = e.descriptionStrategies()
	e.specs = e.specStrategies()
	e.features = compileSelectors(e.logger, featureSelectors)
	return e
}

// Extract runs every field extractor against doc.
func (e *Extractor) Extract(doc *models.Document) models.Fields {
	features := e.Features(doc)
	title := e.Title(doc)
	return models.Fields{
		Title:          title,
		Price:          e.Price(doc),
		Images:         e.Images(doc),
		Description:    e.Description(doc, title, features),
		Specifications: e.Specifications(doc),
		Features:       features,
	}
}

// cascade returns the first value produced by strategies.
func cascade[T any](logger *slog.Logger, field string, doc *models.Document, strategies []Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := attempt(logger, field, s, doc); ok {
			logger.Debug("field extracted",
				slog.String("field", field),
				slog.String("strategy", s.Name),
			)
			return v, true
		}
	}
	var zero T
	return zero, false
}

// collect runs every strategy and hands each produced value to merge.
func collect[T any](logger *slog.Logger, field string, doc *models.Document, strategies []Strategy[T], merge func(T)) {
	for _, s := range strategies {
		if v, ok := attempt(logger, field, s, doc); ok {
			merge(v)
		}
	}
}

func attempt[T any](logger *slog.Logger, field string, s Strategy[T], doc *models.Document) (v T, ok bool) {
	if doc == nil || doc.Doc == nil {
		return v, false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("extraction strategy panicked",
				slog.String("field", field),
				slog.String("strategy", s.Name),
				slog.Any("panic", r),
			)
			var zero T
			v, ok = zero, false
		}
	}()
	return s.Run(doc)
}
