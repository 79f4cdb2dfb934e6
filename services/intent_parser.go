package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"dealscout/llm"
	"dealscout/models"
)

// ErrUnparsable marks a model reply that could not be turned into a result
var ErrUnparsable = errors.New("unparsable model response")

// DefaultBudget is used when a query names no budget
const DefaultBudget = 50000.0

var (
	budgetRe    = regexp.MustCompile(`(?i)(\d+(?:,\d+)*)(k\b)?`)
	budgetCueRe = regexp.MustCompile(`(?i)\b(?:under|below|within|upto|up to|less than|budget(?: of)?|max|rs\.?|inr)\s*(\d+(?:,\d+)*)(k\b)?|₹\s*(\d+(?:,\d+)*)(k\b)?`)
)

const intentPrompt = `You are a shopping assistant. Extract the product name and budget from the user's query.

Return your response in this exact JSON format:
{
    "product_name": "extracted product name",
    "budget": extracted_budget_as_number
}

Examples:
- "I want to buy a smartphone under 30k with good camera" -> {"product_name": "smartphone with good camera", "budget": 30000}
- "Looking for laptop under 50000" -> {"product_name": "laptop", "budget": 50000}
- "Need headphones below 5k" -> {"product_name": "headphones", "budget": 5000}

Convert k to thousands (30k = 30000).
If no budget is mentioned, assume a reasonable budget based on the product type.

User query: %s
`

// IntentParser turns a free-text query into a QueryIntent, asking the
// language model first and falling back to a keyword heuristic
type IntentParser struct {
	generator     llm.Generator
	defaultBudget float64
}

// NewIntentParser creates an intent parser. A nil generator skips straight
// to the heuristic.
func NewIntentParser(generator llm.Generator, defaultBudget float64) *IntentParser {
	if defaultBudget <= 0 {
		defaultBudget = DefaultBudget
	}
	return &IntentParser{
		generator:     generator,
		defaultBudget: defaultBudget,
	}
}

// Parse never fails on a delegate problem; only a programming error in a
// stage surfaces as an error.
func (p *IntentParser) Parse(ctx context.Context, query string) (models.QueryIntent, error) {
	stages := []Stage[models.QueryIntent]{}
	if p.generator != nil {
		stages = append(stages, Stage[models.QueryIntent]{
			Name:     "llm",
			Run:      func(ctx context.Context) (models.QueryIntent, error) { return p.parseWithLLM(ctx, query) },
			Recovers: []error{llm.ErrGeneration, llm.ErrNoJSON, llm.ErrMalformedJSON, ErrUnparsable},
		})
	}
	stages = append(stages, Stage[models.QueryIntent]{
		Name: "heuristic",
		Run: func(context.Context) (models.QueryIntent, error) {
			return p.ParseHeuristic(query), nil
		},
	})

	intent, _, err := RunChain(ctx, "intent parser", stages...)
	return intent, err
}

// flexibleNumber accepts a JSON number or a numeric string
type flexibleNumber float64

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = flexibleNumber(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("budget is neither number nor string: %s", string(data))
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return fmt.Errorf("budget %q is not numeric", s)
	}
	*n = flexibleNumber(f)
	return nil
}

type intentReply struct {
	ProductName string         `json:"product_name"`
	Budget      flexibleNumber `json:"budget"`
}

func (p *IntentParser) parseWithLLM(ctx context.Context, query string) (models.QueryIntent, error) {
	reply, err := p.generator.Generate(ctx, fmt.Sprintf(intentPrompt, query))
	if err != nil {
		return models.QueryIntent{}, llm.AsGenerationError(err)
	}

	var parsed intentReply
	if err := llm.DecodeObject(reply, &parsed); err != nil {
		return models.QueryIntent{}, err
	}

	name := strings.TrimSpace(parsed.ProductName)
	budget := float64(parsed.Budget)
	if name == "" {
		return models.QueryIntent{}, fmt.Errorf("%w: empty product_name", ErrUnparsable)
	}
	if budget <= 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return models.QueryIntent{}, fmt.Errorf("%w: budget %v", ErrUnparsable, budget)
	}

	log.Printf("📱 Product: %s", name)
	log.Printf("💰 Budget: ₹%s", FormatRupees(budget))

	return models.QueryIntent{ProductName: name, Budget: budget, Origin: models.IntentFromLLM}, nil
}

// ParseHeuristic takes the budget from the first integer after a budget word
// such as "under" or "₹", else the first integer in the query. A trailing k
// means thousands. The product name is the query as typed.
func (p *IntentParser) ParseHeuristic(query string) models.QueryIntent {
	intent := models.QueryIntent{
		ProductName: query,
		Budget:      p.defaultBudget,
		Origin:      models.IntentFromHeuristic,
	}

	digits, suffix, ok := findBudget(query)
	if !ok {
		return intent
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return intent
	}
	if suffix != "" {
		value *= 1000
	}
	intent.Budget = value
	return intent
}

func findBudget(query string) (digits, suffix string, ok bool) {
	if m := budgetCueRe.FindStringSubmatch(query); m != nil {
		if m[1] != "" {
			return m[1], m[2], true
		}
		return m[3], m[4], true
	}
	if m := budgetRe.FindStringSubmatch(query); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}
