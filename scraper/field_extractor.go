package scraper

import (
	"strings"

	"dealscout/config"
	"dealscout/models"
)

// Extract tries each selector of spec in order and returns the first value
// that parse accepts. Matches are read in document order, at most
// spec.MaxMatches per selector. Lookup failures and panics from the DOM are
// swallowed and treated as "no value".
func Extract[T any](card Node, spec config.FieldSpec, parse func(string) (T, bool)) (value T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, ok = zero, false
		}
	}()

	for _, selector := range spec.Selectors {
		if v, found := extractSelector(card, selector, spec, parse); found {
			return v, true
		}
	}
	return value, false
}

func extractSelector[T any](card Node, selector string, spec config.FieldSpec, parse func(string) (T, bool)) (value T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	matches, err := card.Find(selector)
	if err != nil {
		return value, false
	}
	if spec.MaxMatches > 0 && len(matches) > spec.MaxMatches {
		matches = matches[:spec.MaxMatches]
	}

	for _, match := range matches {
		raw, err := readNode(match, spec)
		if err != nil || raw == "" {
			continue
		}
		if v, valid := parse(raw); valid {
			return v, true
		}
	}
	return value, false
}

// readNode returns the configured attribute, or the text falling back to
// spec.FallbackAttr when the text is empty
func readNode(node Node, spec config.FieldSpec) (string, error) {
	if spec.Attr != "" {
		value, _, err := node.Attr(spec.Attr)
		return strings.TrimSpace(value), err
	}

	text, err := node.Text()
	if err == nil {
		text = strings.TrimSpace(text)
	}
	if text != "" || spec.FallbackAttr == "" {
		return text, err
	}

	value, _, attrErr := node.Attr(spec.FallbackAttr)
	if attrErr != nil {
		return "", attrErr
	}
	return strings.TrimSpace(value), nil
}

// FieldExtractor reads every product field of a site's result cards
type FieldExtractor struct {
	fields    config.FieldSet
	parseLink func(string) (string, bool)
}

// NewFieldExtractor creates an extractor for one site
func NewFieldExtractor(site *config.SiteConfig) *FieldExtractor {
	return &FieldExtractor{
		fields:    site.Fields,
		parseLink: productURLParser(site.Origin, site.URLMarkers),
	}
}

// ExtractCard reads all fields from one card. Absent fields stay nil.
func (fe *FieldExtractor) ExtractCard(card Node) models.RawFields {
	var raw models.RawFields

	if title, ok := Extract(card, fe.fields.Title, ParseTitle); ok {
		raw.Title = &title
	}
	if price, ok := Extract(card, fe.fields.Price, ParsePrice); ok {
		raw.Price = &price
	}
	if rating, ok := Extract(card, fe.fields.Rating, ParseRating); ok {
		raw.Rating = &rating
	}
	if link, ok := Extract(card, fe.fields.URL, fe.parseLink); ok {
		raw.URL = &link
	}

	// Optional fields are only read for cards that can be admitted
	if raw.Title == nil || raw.Price == nil {
		return raw
	}

	if brand, ok := Extract(card, fe.fields.Brand, ParseBrand); ok {
		raw.Brand = &brand
	}
	if mrp, ok := Extract(card, fe.fields.MRP, ParsePrice); ok {
		raw.MRP = &mrp
	}
	if count, ok := Extract(card, fe.fields.ReviewsCount, ParseCount); ok {
		raw.ReviewsCount = &count
	}

	return raw
}
