package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"dealscout/llm"
	"dealscout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(title string, price float64, rating models.Rating, url string) models.Product {
	return models.Product{
		Title:  title,
		Price:  price,
		Rating: rating,
		URL:    url,
		Source: models.SourceFlipkart,
	}
}

func rankedTitles(recs []models.Recommendation) []string {
	titles := make([]string, 0, len(recs))
	for _, rec := range recs {
		titles = append(titles, rec.Product.Title)
	}
	return titles
}

func TestRankEmptyInput(t *testing.T) {
	called := false
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		called = true
		return "[]", nil
	})

	recs, err := NewRanker(gen, 3).Rank(context.Background(), nil, "laptop")
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.False(t, called)
}

func TestRankHeuristicFallbackOrder(t *testing.T) {
	products := []models.Product{
		product("rated four, pricier", 200, models.RatingOf(4), ""),
		product("unrated but cheapest", 100, models.RatingUnavailable(), ""),
		product("rated four, cheaper", 150, models.RatingOf(4), ""),
	}

	recs, err := NewRanker(failingGenerator(), 3).Rank(context.Background(), products, "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"rated four, cheaper", "rated four, pricier", "unrated but cheapest"}, rankedTitles(recs))

	for i, rec := range recs {
		assert.Equal(t, i+1, rec.Rank)
	}
	assert.Equal(t, "Ranked #1 based on price and rating", recs[0].WhyRecommended)
	assert.Equal(t, "Ranked #3 based on price and rating", recs[2].WhyRecommended)
}

func TestRankPlainGeneratorErrorFallsBack(t *testing.T) {
	products := []models.Product{
		product("rated four, pricier", 200, models.RatingOf(4), ""),
		product("unrated but cheapest", 100, models.RatingUnavailable(), ""),
		product("rated four, cheaper", 150, models.RatingOf(4), ""),
	}
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("network down")
	})

	recs, err := NewRanker(gen, 3).Rank(context.Background(), products, "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"rated four, cheaper", "rated four, pricier", "unrated but cheapest"}, rankedTitles(recs))
	assert.Equal(t, "Ranked #1 based on price and rating", recs[0].WhyRecommended)
}

func TestRankHeuristicTopN(t *testing.T) {
	products := []models.Product{
		product("a", 500, models.RatingOf(3), ""),
		product("b", 400, models.RatingOf(5), ""),
		product("c", 300, models.RatingOf(4.5), ""),
		product("d", 200, models.RatingOf(4.5), ""),
	}

	recs, err := NewRanker(nil, 2).Rank(context.Background(), products, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, rankedTitles(recs))
}

func TestRankWithLLM(t *testing.T) {
	products := []models.Product{
		product("Budget Phone 4GB RAM 64GB", 8999, models.RatingOf(4.0), "https://www.flipkart.com/budget/p/itm1"),
		product("Camera Phone 8GB RAM 128GB", 14999, models.RatingOf(4.4), "https://www.flipkart.com/camera/p/itm2"),
		product("Flagship Phone 12GB RAM", 29999, models.RatingUnavailable(), ""),
	}

	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return `Sure, here is my ranking:
[
  {"id": 1, "rank": 1, "name": "Camera Phone", "price": 1, "why_recommended": "Best camera for the money"},
  {"rank": "2", "name": "renamed", "url": "https://www.flipkart.com/budget/p/itm1", "why_recommended": "Cheapest option"},
  {"rank": 3, "name": "Flagship Phone 12GB RAM", "why_recommended": ""},
  {"rank": 4, "name": "Made Up Phone", "why_recommended": "Does not exist"}
]`, nil
	})

	recs, err := NewRanker(gen, 3).Rank(context.Background(), products, "phone with good camera")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, products[1], recs[0].Product, "product fields come from scraped data")
	assert.Equal(t, "Best camera for the money", recs[0].WhyRecommended)
	assert.Equal(t, products[0], recs[1].Product)
	assert.Equal(t, products[2], recs[2].Product)
	assert.Equal(t, "Ranked #3 by the assistant", recs[2].WhyRecommended)

	assert.Contains(t, prompt, `"phone with good camera"`)
	assert.Contains(t, prompt, `"rating": "N/A"`)
	assert.Contains(t, prompt, `"id": 2`)
}

func TestRankWithLLMOrdersByRank(t *testing.T) {
	products := []models.Product{
		product("first product title", 1000, models.RatingOf(3), ""),
		product("second product title", 2000, models.RatingOf(3), ""),
	}

	gen := replyGenerator(`[{"id": 0, "rank": 2, "why_recommended": "runner up"}, {"id": 1, "rank": 1, "why_recommended": "winner"}]`)
	recs, err := NewRanker(gen, 3).Rank(context.Background(), products, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"second product title", "first product title"}, rankedTitles(recs))
	assert.Equal(t, 1, recs[0].Rank)
}

func TestRankUnmappableReplyFallsBack(t *testing.T) {
	products := []models.Product{
		product("expensive", 900, models.RatingOf(4.8), ""),
		product("cheap", 300, models.RatingOf(3.1), ""),
	}

	gen := replyGenerator(`[{"rank": 1, "name": "hallucinated", "why_recommended": "?"}]`)
	recs, err := NewRanker(gen, 3).Rank(context.Background(), products, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"expensive", "cheap"}, rankedTitles(recs))
	assert.Equal(t, "Ranked #1 based on price and rating", recs[0].WhyRecommended)
}

func TestRankNoArrayFallsBack(t *testing.T) {
	products := []models.Product{product("only product here", 500, models.RatingOf(4), "")}

	recs, err := NewRanker(replyGenerator("I recommend the first one."), 3).Rank(context.Background(), products, "q")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Ranked #1 based on price and rating", recs[0].WhyRecommended)
}

func TestRankCandidatePrepFailureUsesPrice(t *testing.T) {
	products := []models.Product{
		product("broken rating", 700, models.RatingOf(math.NaN()), ""),
		product("cheapest", 200, models.RatingOf(1), ""),
		product("middle", 400, models.RatingOf(5), ""),
	}

	called := false
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		called = true
		return "[]", nil
	})

	recs, err := NewRanker(gen, 3).Rank(context.Background(), products, "q")
	require.NoError(t, err)
	assert.False(t, called, "the model is not consulted when candidates cannot be prepared")
	assert.Equal(t, []string{"cheapest", "middle", "broken rating"}, rankedTitles(recs))
	assert.Equal(t, "Ranked #2 by price", recs[1].WhyRecommended)
}

func TestRankByPriceIsStable(t *testing.T) {
	products := []models.Product{
		product("x", 100, models.RatingOf(1), ""),
		product("y", 100, models.RatingOf(5), ""),
	}

	recs := NewRanker(nil, 3).RankByPrice(products)
	assert.Equal(t, []string{"x", "y"}, rankedTitles(recs))
}
