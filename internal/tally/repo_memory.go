package tally

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Tally
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Tally)}
}

func (r *MemoryRepo) Increment(ctx context.Context, sentiment string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.data[sentiment]
	t.Sentiment = sentiment
	t.Count++
	seen := at.UTC()
	t.LastSeenAt = &seen
	r.data[sentiment] = t
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Tally, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Tally, 0, len(r.data))
	for _, t := range r.data {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Sentiment < out[j].Sentiment })
	return out, nil
}
