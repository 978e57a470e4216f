package sentiment

// Label is the classification outcome. Only the constants below are ever produced.
type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
)

// Labels lists every label Classify can return.
func Labels() []Label {
	return []Label{Positive, Neutral}
}

// Result is the response body of GET /api/sentiment. It serializes to exactly
// one key.
type Result struct {
	Sentiment Label `json:"sentiment"`
}
