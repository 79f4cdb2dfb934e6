package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"dealscout/llm"
	"dealscout/models"
)

// ErrCandidatePrep is returned when products cannot be prepared for ranking
var ErrCandidatePrep = errors.New("failed to prepare ranking candidates")

// DefaultTopN is the number of recommendations returned when unset
const DefaultTopN = 3

const rankPrompt = `You are a product recommendation expert. Analyze the following products and recommend the top %d that best match the user's query: %q

Consider these factors:
1. Relevance to the search query
2. Price-to-value ratio
3. Customer ratings (if available)
4. Product features mentioned in the name

Products data:
%s

Return your response as a JSON array of the top %d products with explanations:
[
    {
        "id": candidate_id,
        "rank": 1,
        "name": "product name",
        "price": price_number,
        "rating": "rating_value",
        "url": "product_url",
        "source": "source_name",
        "why_recommended": "brief explanation why this product is recommended"
    }
]

If there are fewer than %d products, return all available products.
Make sure to preserve the original ids and URLs from the input data.
`

// Ranker orders products into recommendations: language model first, then
// rating and price, then price alone
type Ranker struct {
	generator llm.Generator
	topN      int
}

// NewRanker creates a ranker. A nil generator starts at the heuristic.
func NewRanker(generator llm.Generator, topN int) *Ranker {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Ranker{
		generator: generator,
		topN:      topN,
	}
}

// candidate is the serialized form of a product shown to the model
type candidate struct {
	ID     int           `json:"id"`
	Name   string        `json:"name"`
	Price  float64       `json:"price"`
	Rating models.Rating `json:"rating"`
	URL    string        `json:"url,omitempty"`
	Source models.Source `json:"source"`
	Brand  string        `json:"brand,omitempty"`
}

type rankedEntry struct {
	ID             *flexibleNumber `json:"id"`
	Rank           json.RawMessage `json:"rank"`
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	WhyRecommended string          `json:"why_recommended"`
}

// Rank returns at most topN recommendations numbered from 1. Empty input
// gives an empty, non-nil result.
func (r *Ranker) Rank(ctx context.Context, products []models.Product, query string) ([]models.Recommendation, error) {
	if len(products) == 0 {
		return []models.Recommendation{}, nil
	}

	stages := []Stage[[]models.Recommendation]{}
	if r.generator != nil {
		stages = append(stages, Stage[[]models.Recommendation]{
			Name: "llm",
			Run: func(ctx context.Context) ([]models.Recommendation, error) {
				return r.rankWithLLM(ctx, products, query)
			},
			Recovers: []error{llm.ErrGeneration, llm.ErrNoJSON, llm.ErrMalformedJSON, ErrUnparsable, ErrCandidatePrep},
		})
	}
	stages = append(stages,
		Stage[[]models.Recommendation]{
			Name: "rating and price",
			Run: func(context.Context) ([]models.Recommendation, error) {
				return r.RankByRatingAndPrice(products)
			},
			Recovers: []error{ErrCandidatePrep},
		},
		Stage[[]models.Recommendation]{
			Name: "price",
			Run: func(context.Context) ([]models.Recommendation, error) {
				return r.RankByPrice(products), nil
			},
		},
	)

	recs, stage, err := RunChain(ctx, "ranker", stages...)
	if err != nil {
		return nil, err
	}
	log.Printf("🤖 Ranked %d of %d products using %s", len(recs), len(products), stage)
	return recs, nil
}

// prepareCandidates validates products and serializes them for the prompt
func prepareCandidates(products []models.Product) ([]candidate, []byte, error) {
	candidates := make([]candidate, 0, len(products))
	for i := range products {
		p := &products[i]
		if !p.IsFinite() {
			return nil, nil, fmt.Errorf("%w: product %d has a non-finite price or rating", ErrCandidatePrep, i)
		}
		candidates = append(candidates, candidate{
			ID:     i,
			Name:   p.Title,
			Price:  p.Price,
			Rating: p.Rating,
			URL:    p.URL,
			Source: p.Source,
			Brand:  p.Brand,
		})
	}

	payload, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCandidatePrep, err)
	}
	return candidates, payload, nil
}

func (r *Ranker) rankWithLLM(ctx context.Context, products []models.Product, query string) ([]models.Recommendation, error) {
	_, payload, err := prepareCandidates(products)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(rankPrompt, r.topN, query, payload, r.topN, r.topN)
	reply, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, llm.AsGenerationError(err)
	}

	var entries []rankedEntry
	if err := llm.DecodeArray(reply, &entries); err != nil {
		return nil, err
	}

	return r.mapEntries(entries, products)
}

// mapEntries resolves ranked entries back to scraped products so that no
// model-invented field reaches a recommendation
func (r *Ranker) mapEntries(entries []rankedEntry, products []models.Product) ([]models.Recommendation, error) {
	byURL := make(map[string]int)
	byName := make(map[string]int)
	for i := len(products) - 1; i >= 0; i-- {
		if products[i].HasURL() {
			byURL[products[i].URL] = i
		}
		byName[products[i].Title] = i
	}

	order := make([]int, len(entries))
	ranks := make([]float64, len(entries))
	for i := range entries {
		order[i] = i
		ranks[i] = entryRank(entries[i], i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranks[order[a]] < ranks[order[b]]
	})

	used := make(map[int]bool)
	recs := make([]models.Recommendation, 0, r.topN)
	for _, k := range order {
		entry := entries[k]
		if len(recs) == r.topN {
			break
		}

		idx, ok := -1, false
		if entry.ID != nil {
			id := float64(*entry.ID)
			if id == math.Trunc(id) && id >= 0 && id < float64(len(products)) {
				idx, ok = int(id), true
			}
		}
		if !ok && entry.URL != "" {
			idx, ok = byURL[entry.URL]
		}
		if !ok && entry.Name != "" {
			idx, ok = byName[entry.Name]
		}
		if !ok || used[idx] {
			continue
		}
		used[idx] = true

		why := strings.TrimSpace(entry.WhyRecommended)
		if why == "" {
			why = fmt.Sprintf("Ranked #%d by the assistant", len(recs)+1)
		}
		recs = append(recs, models.Recommendation{
			Rank:           len(recs) + 1,
			Product:        products[idx],
			WhyRecommended: why,
		})
	}

	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: none of %d ranked entries matched a product", ErrUnparsable, len(entries))
	}
	return recs, nil
}

// entryRank reads the model's rank, which may be a number or a string.
// Unranked entries keep their position after ranked ones.
func entryRank(entry rankedEntry, position int) float64 {
	raw := strings.Trim(strings.TrimSpace(string(entry.Rank)), `"`)
	if rank, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(rank) {
		return rank
	}
	return math.MaxInt32 + float64(position)
}

// RankByRatingAndPrice orders by rating descending, unavailable counting as
// zero, with lower price breaking ties
func (r *Ranker) RankByRatingAndPrice(products []models.Product) ([]models.Recommendation, error) {
	if _, _, err := prepareCandidates(products); err != nil {
		return nil, err
	}

	sorted := append([]models.Product(nil), products...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Rating.OrZero(), sorted[j].Rating.OrZero()
		if ri != rj {
			return ri > rj
		}
		return sorted[i].Price < sorted[j].Price
	})

	return r.take(sorted, "Ranked #%d based on price and rating"), nil
}

// RankByPrice orders the raw products by price ascending
func (r *Ranker) RankByPrice(products []models.Product) []models.Recommendation {
	sorted := append([]models.Product(nil), products...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	return r.take(sorted, "Ranked #%d by price")
}

func (r *Ranker) take(sorted []models.Product, why string) []models.Recommendation {
	n := min(r.topN, len(sorted))
	recs := make([]models.Recommendation, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, models.Recommendation{
			Rank:           i + 1,
			Product:        sorted[i],
			WhyRecommended: fmt.Sprintf(why, i+1),
		})
	}
	return recs
}
