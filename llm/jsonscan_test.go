package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedyObject(t *testing.T) {
	got, ok := GreedyObject(`Sure! {"product_name": "laptop", "budget": 50000} Hope that helps {}`)
	require.True(t, ok)
	assert.Equal(t, `{"product_name": "laptop", "budget": 50000} Hope that helps {}`, got)

	_, ok = GreedyObject("no braces here")
	assert.False(t, ok)

	_, ok = GreedyObject("} backwards {")
	assert.False(t, ok)
}

func TestGreedyArray(t *testing.T) {
	got, ok := GreedyArray("Here you go:\n[{\"rank\": 1}]\nThanks")
	require.True(t, ok)
	assert.Equal(t, `[{"rank": 1}]`, got)

	_, ok = GreedyArray("{}")
	assert.False(t, ok)
}

func TestDecodeObject(t *testing.T) {
	type intent struct {
		ProductName string  `json:"product_name"`
		Budget      float64 `json:"budget"`
	}

	tests := []struct {
		name  string
		input string
		want  intent
	}{
		{"plain", `{"product_name": "laptop", "budget": 50000}`, intent{"laptop", 50000}},
		{"surrounded by prose", `The answer is {"product_name": "phone", "budget": 30000}.`, intent{"phone", 30000}},
		{"markdown fence", "```json\n{\"product_name\": \"tv\", \"budget\": 40000}\n```", intent{"tv", 40000}},
		{"trailing comma", `{"product_name": "mouse", "budget": 1500,}`, intent{"mouse", 1500}},
		{"unquoted keys", `{product_name: "desk", budget: 9000}`, intent{"desk", 9000}},
		{"two objects", `{"product_name": "a", "budget": 200} and later {"x": 1}`, intent{"a", 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got intent
			require.NoError(t, DecodeObject(tt.input, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObjectErrors(t *testing.T) {
	var target map[string]any

	err := DecodeObject("I cannot help with that", &target)
	assert.ErrorIs(t, err, ErrNoJSON)

	err = DecodeObject("{this is not json at all}", &target)
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestDecodeArray(t *testing.T) {
	var got []struct {
		Rank int    `json:"rank"`
		Name string `json:"name"`
	}

	require.NoError(t, DecodeArray("Ranking:\n[{\"rank\": 1, \"name\": \"A\"}, {\"rank\": 2, \"name\": \"B\"},]\n", &got))
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].Name)

	var empty []any
	assert.ErrorIs(t, DecodeArray(`{"rank": 1}`, &empty), ErrNoJSON)
}

func TestExtractBalancedIgnoresStrings(t *testing.T) {
	got := extractBalanced(`{"a": "}{"} trailing }`, '{', '}')
	assert.Equal(t, `{"a": "}{"}`, got)
}
