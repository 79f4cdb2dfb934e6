package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Source identifies the marketplace a product was scraped from
type Source string

const (
	SourceFlipkart Source = "Flipkart"
	SourceAmazon   Source = "Amazon"
)

// ratingUnavailableText is how a missing rating is shown to users
const ratingUnavailableText = "N/A"

// Rating is a star rating in [0, 5] that may be unavailable.
// The zero value is unavailable.
type Rating struct {
	value     float64
	available bool
}

// RatingOf returns an available rating
func RatingOf(v float64) Rating {
	return Rating{value: v, available: true}
}

// RatingUnavailable returns the "not available" sentinel
func RatingUnavailable() Rating {
	return Rating{}
}

// Value returns the rating and whether it is available
func (r Rating) Value() (float64, bool) {
	return r.value, r.available
}

// OrZero returns the rating value, or 0 when unavailable
func (r Rating) OrZero() float64 {
	if !r.available {
		return 0
	}
	return r.value
}

func (r Rating) String() string {
	if !r.available {
		return ratingUnavailableText
	}
	return strconv.FormatFloat(r.value, 'f', 1, 64)
}

// MarshalJSON encodes the rating as a number or "N/A"
func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.available {
		return json.Marshal(ratingUnavailableText)
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON accepts a number, a numeric string, "N/A" or null
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = RatingUnavailable()
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*r = RatingOf(num)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("invalid rating %s", string(data))
	}
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, ratingUnavailableText) {
		*r = RatingUnavailable()
		return nil
	}
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid rating %q: %w", text, err)
	}
	*r = RatingOf(num)
	return nil
}

// RawFields holds whatever the extractor managed to read from one card.
// Nil means the field was absent or failed validation.
type RawFields struct {
	Title        *string
	Price        *float64
	Rating       *float64
	URL          *string
	Brand        *string
	MRP          *float64
	ReviewsCount *int
}

// Product is a normalized listing that passed admission
type Product struct {
	Title        string   `json:"name"`
	Price        float64  `json:"price"`
	Rating       Rating   `json:"rating"`
	URL          string   `json:"url,omitempty"`
	Source       Source   `json:"source"`
	Brand        string   `json:"brand,omitempty"`
	MRP          *float64 `json:"mrp,omitempty"`
	Discount     *float64 `json:"discount_percentage,omitempty"`
	ReviewsCount *int     `json:"reviews_count,omitempty"`
}

// HasURL returns true if the product carries a resolved permalink
func (p *Product) HasURL() bool {
	return p.URL != ""
}

// IsFinite reports whether price and rating are usable numbers
func (p *Product) IsFinite() bool {
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return false
	}
	v, ok := p.Rating.Value()
	return !ok || (!math.IsNaN(v) && !math.IsInf(v, 0))
}

// IntentOrigin records which strategy produced a QueryIntent
type IntentOrigin string

const (
	IntentFromLLM       IntentOrigin = "llm"
	IntentFromHeuristic IntentOrigin = "heuristic"
)

// QueryIntent is the parsed form of a free-text shopping query
type QueryIntent struct {
	ProductName string       `json:"product_name"`
	Budget      float64      `json:"budget"`
	Origin      IntentOrigin `json:"origin"`
}

// Recommendation is one ranked product with its rationale
type Recommendation struct {
	Rank           int     `json:"rank"`
	Product        Product `json:"product"`
	WhyRecommended string  `json:"why_recommended"`
}

// PriceObservation is one scraped price recorded for history
type PriceObservation struct {
	ID         int64     `json:"id" db:"id"`
	QueryID    string    `json:"query_id" db:"query_id"`
	Query      string    `json:"query" db:"query"`
	Source     string    `json:"source" db:"source"`
	Title      string    `json:"title" db:"title"`
	Price      float64   `json:"price" db:"price"`
	Rating     *float64  `json:"rating" db:"rating"`
	URL        *string   `json:"url" db:"url"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// NewPriceObservation converts a product into a history row
func NewPriceObservation(queryID, query string, p Product, at time.Time) PriceObservation {
	obs := PriceObservation{
		QueryID:    queryID,
		Query:      query,
		Source:     string(p.Source),
		Title:      p.Title,
		Price:      p.Price,
		ObservedAt: at,
	}
	if v, ok := p.Rating.Value(); ok {
		obs.Rating = &v
	}
	if p.HasURL() {
		u := p.URL
		obs.URL = &u
	}
	return obs
}
