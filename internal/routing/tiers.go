package routing

import (
	"context"
	"errors"
)

// errNoTiers is returned by tryInOrder when given nothing to try.
var errNoTiers = errors.New("no tiers configured")

// tier is one step of a fallback ladder.
type tier[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// tryInOrder runs tiers until one succeeds. Any error, including a
// *SoftFailure, advances to the next tier; onReject is told about each
// rejection. The last error is returned if every tier fails.
func tryInOrder[T any](ctx context.Context, tiers []tier[T], onReject func(name string, err error)) (T, string, error) {
	var (
		zero    T
		lastErr = errNoTiers
	)

	for _, t := range tiers {
		result, err := t.run(ctx)
		if err == nil {
			return result, t.name, nil
		}
		lastErr = err
		if onReject != nil {
			onReject(t.name, err)
		}
	}

	return zero, "", lastErr
}
