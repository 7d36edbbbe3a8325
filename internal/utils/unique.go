package utils

import (
	"context"
	"errors"
	"fmt"
)

// MaxAllocationAttempts caps every bounded unique-value allocation (access
// codes, tour slugs). Each attempt generates one candidate.
const MaxAllocationAttempts = 10

// ErrAllocationExhausted is returned when every candidate collided.
var ErrAllocationExhausted = errors.New("unique value allocation exhausted")

// CandidateFunc produces the candidate for the given zero-based attempt.
type CandidateFunc func(attempt int) (string, error)

// ExistsFunc reports whether a candidate is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// AllocateUnique returns the first candidate for which exists reports false,
// trying at most maxAttempts candidates. Errors from either callback abort
// the allocation immediately.
func AllocateUnique(ctx context.Context, maxAttempts int, next CandidateFunc, exists ExistsFunc) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = MaxAllocationAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := next(attempt)
		if err != nil {
			return "", fmt.Errorf("failed to generate candidate: %w", err)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check candidate %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, maxAttempts)
}
