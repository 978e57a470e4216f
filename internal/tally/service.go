package tally

import (
	"context"
	"sort"
	"strings"
	"time"

	"sentiment-api/internal/shared/metrics"
)

const defaultRecordTimeout = 500 * time.Millisecond

type Service struct {
	Repo          Repo
	Labels        []string
	RecordTimeout time.Duration
	Now           func() time.Time
}

// NewService builds a tally service. labels are reported even before they
// have been recorded.
func NewService(repo Repo, recordTimeout time.Duration, labels ...string) *Service {
	if recordTimeout <= 0 {
		recordTimeout = defaultRecordTimeout
	}
	return &Service{
		Repo:          repo,
		Labels:        labels,
		RecordTimeout: recordTimeout,
		Now:           time.Now,
	}
}

// Record increments the counter for sentiment, bounded by RecordTimeout.
func (s *Service) Record(ctx context.Context, sentiment string) error {
	sentiment = strings.TrimSpace(sentiment)
	if sentiment == "" {
		return ErrEmptySentiment
	}
	ctx, cancel := context.WithTimeout(ctx, s.RecordTimeout)
	defer cancel()
	if err := s.Repo.Increment(ctx, sentiment, s.Now()); err != nil {
		reason := "repo"
		if ctx.Err() != nil {
			reason = "timeout"
		}
		metrics.IncTallyFailure(reason)
		return err
	}
	return nil
}

// Snapshot returns every known label, zero-filled, plus any other stored label.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	stored, err := s.Repo.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	byLabel := make(map[string]Tally, len(stored)+len(s.Labels))
	for _, label := range s.Labels {
		byLabel[label] = Tally{Sentiment: label}
	}
	for _, t := range stored {
		byLabel[t.Sentiment] = t
	}

	snap := Snapshot{Tallies: make([]Tally, 0, len(byLabel))}
	for _, t := range byLabel {
		snap.Tallies = append(snap.Tallies, t)
		snap.Total += t.Count
	}
	sort.Slice(snap.Tallies, func(i, j int) bool { return snap.Tallies[i].Sentiment < snap.Tallies[j].Sentiment })
	return snap, nil
}
