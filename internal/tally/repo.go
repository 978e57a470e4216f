package tally

import (
	"context"
	"time"
)

// Repo persists per-label counters.
type Repo interface {
	Increment(ctx context.Context, sentiment string, at time.Time) error
	List(ctx context.Context) ([]Tally, error)
}
