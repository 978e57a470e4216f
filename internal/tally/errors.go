package tally

import "errors"

// ErrEmptySentiment is returned when recording a blank label.
var ErrEmptySentiment = errors.New("sentiment is required")
