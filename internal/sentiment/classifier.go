package sentiment

import "strings"

// positiveKeyword marks text as positive wherever it appears, including inside
// longer words ("goodbye").
const positiveKeyword = "good"

// Classify labels text by a case-insensitive substring match on "good".
// It is total: every string, including "", yields a label.
func Classify(text string) Result {
	if strings.Contains(strings.ToLower(text), positiveKeyword) {
		return Result{Sentiment: Positive}
	}
	return Result{Sentiment: Neutral}
}
