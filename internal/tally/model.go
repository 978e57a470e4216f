package tally

import "time"

// Tally is the running count of one sentiment label.
type Tally struct {
	Sentiment  string     `json:"sentiment"`
	Count      int64      `json:"count"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// Snapshot is the body of GET /api/sentiment/stats.
type Snapshot struct {
	Tallies []Tally `json:"tallies"`
	Total   int64   `json:"total"`
}
