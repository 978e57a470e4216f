package tally

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Increment(ctx context.Context, sentiment string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO sentiment_tallies (sentiment, count, last_seen_at)
VALUES ($1, 1, $2)
ON CONFLICT (sentiment) DO UPDATE
SET count = sentiment_tallies.count + 1, last_seen_at = EXCLUDED.last_seen_at`, sentiment, at.UTC())
	if err != nil {
		return fmt.Errorf("increment tally %q: %w", sentiment, err)
	}
	return nil
}

func (r *PGRepo) List(ctx context.Context) ([]Tally, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT sentiment, count, last_seen_at
FROM sentiment_tallies
ORDER BY sentiment`)
	if err != nil {
		return nil, fmt.Errorf("list tallies: %w", err)
	}
	defer rows.Close()

	var out []Tally
	for rows.Next() {
		var (
			t    Tally
			seen time.Time
		)
		if err := rows.Scan(&t.Sentiment, &t.Count, &seen); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		seen = seen.UTC()
		t.LastSeenAt = &seen
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tallies: %w", err)
	}
	return out, nil
}
