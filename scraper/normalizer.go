package scraper

import (
	"math"

	"dealscout/models"
)

// Normalize turns extracted fields into a Product. It returns false unless
// the title is longer than MinTitleLength and the price exceeds MinPrice.
func Normalize(raw models.RawFields, source models.Source, origin string) (models.Product, bool) {
	if raw.Title == nil || raw.Price == nil {
		return models.Product{}, false
	}

	title, ok := ParseTitle(*raw.Title)
	if !ok {
		return models.Product{}, false
	}

	price := *raw.Price
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= MinPrice {
		return models.Product{}, false
	}

	product := models.Product{
		Title:  title,
		Price:  price,
		Rating: models.RatingUnavailable(),
		Source: source,
	}

	if raw.Rating != nil && *raw.Rating >= 0 && *raw.Rating <= MaxRating {
		product.Rating = models.RatingOf(*raw.Rating)
	}

	if raw.URL != nil {
		if resolved, ok := ResolveProductURL(*raw.URL, origin); ok {
			product.URL = resolved
		}
	}

	if raw.Brand != nil {
		product.Brand = *raw.Brand
	}

	if raw.ReviewsCount != nil && *raw.ReviewsCount >= 0 {
		count := *raw.ReviewsCount
		product.ReviewsCount = &count
	}

	if raw.MRP != nil && *raw.MRP > price {
		mrp := *raw.MRP
		discount := math.Round((mrp-price)/mrp*1000) / 10
		product.MRP = &mrp
		product.Discount = &discount
	}

	return product, true
}
