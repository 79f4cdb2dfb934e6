package services

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrChainExhausted is returned when every stage of a chain failed with a
// recoverable error
var ErrChainExhausted = errors.New("all strategies failed")

// Stage is one strategy in a fallback chain. Recovers lists the error kinds
// the chain may fall through on; any other error aborts the chain.
type Stage[T any] struct {
	Name     string
	Run      func(ctx context.Context) (T, error)
	Recovers []error
}

func (s Stage[T]) recoverable(err error) bool {
	for _, target := range s.Recovers {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RunChain tries each stage in order and returns the first success
func RunChain[T any](ctx context.Context, chain string, stages ...Stage[T]) (T, string, error) {
	var zero T
	var lastErr error

	for _, stage := range stages {
		if stage.Run == nil {
			continue
		}

		result, err := stage.Run(ctx)
		if err == nil {
			return result, stage.Name, nil
		}
		if !stage.recoverable(err) {
			return zero, stage.Name, fmt.Errorf("%s: %s: %w", chain, stage.Name, err)
		}

		log.Printf("⚠️ %s: %s failed, falling back: %v", chain, stage.Name, err)
		lastErr = err
	}

	if lastErr == nil {
		return zero, "", fmt.Errorf("%s: %w: no stages", chain, ErrChainExhausted)
	}
	return zero, "", fmt.Errorf("%s: %w: %w", chain, ErrChainExhausted, lastErr)
}
