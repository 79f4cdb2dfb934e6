package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MinTitleLength is exclusive: titles must be longer than this
	MinTitleLength = 10
	// MinPrice is exclusive: prices must be greater than this
	MinPrice  = 100.0
	MaxRating = 5.0
)

var (
	priceRe  = regexp.MustCompile(`₹?\s*(\d+(?:,\d+)*(?:\.\d+)?)`)
	ratingRe = regexp.MustCompile(`(\d+\.?\d*)`)
	countRe  = regexp.MustCompile(`(\d+(?:,\d+)*)`)
)

// ParseTitle accepts trimmed text longer than MinTitleLength characters.
// Inner whitespace runs are collapsed only after the length check.
func ParseTitle(text string) (string, bool) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= MinTitleLength {
		return "", false
	}
	return strings.Join(strings.Fields(text), " "), true
}

// ParsePrice reads the first amount in text, ignoring the rupee glyph and
// thousands separators. Amounts of MinPrice or less are rejected.
func ParsePrice(text string) (float64, bool) {
	match := priceRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil || price <= MinPrice {
		return 0, false
	}
	return price, true
}

// ParseRating reads the first decimal in text and accepts it only within [0, 5].
// Out of range values are rejected, never clamped.
func ParseRating(text string) (float64, bool) {
	match := ratingRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	rating, err := strconv.ParseFloat(match[1], 64)
	if err != nil || rating < 0 || rating > MaxRating {
		return 0, false
	}
	return rating, true
}

// ParseCount reads a review count such as "(12,345)" or "1,204 ratings"
func ParseCount(text string) (int, bool) {
	match := countRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	count, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return count, true
}

// ParseBrand accepts any non-empty trimmed text
func ParseBrand(text string) (string, bool) {
	brand := strings.TrimSpace(text)
	return brand, brand != ""
}

// HasPermalinkMarker reports whether href looks like a product page link
func HasPermalinkMarker(href string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

// ResolveProductURL makes href absolute against origin. Absolute http(s)
// URLs are returned unchanged.
func ResolveProductURL(href, origin string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", false
		}
		return href, true
	}

	base, err := url.Parse(origin)
	if err != nil || !base.IsAbs() {
		return "", false
	}
	if base.Path == "" {
		base.Path = "/"
	}
	return base.ResolveReference(ref).String(), true
}

// productURLParser validates the permalink marker and resolves against origin
func productURLParser(origin string, markers []string) func(string) (string, bool) {
	return func(href string) (string, bool) {
		if !HasPermalinkMarker(href, markers) {
			return "", false
		}
		return ResolveProductURL(href, origin)
	}
}
