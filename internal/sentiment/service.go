package sentiment

import (
	"context"

	"sentiment-api/internal/shared/metrics"
)

// Recorder keeps a running count of produced labels.
type Recorder interface {
	Record(ctx context.Context, sentiment string) error
}

type Service struct {
	Recorder Recorder
}

func NewService(recorder Recorder) *Service {
	return &Service{Recorder: recorder}
}

// Analyze classifies text and records the outcome. A recording failure is
// returned alongside a valid result; callers decide whether to care.
func (s *Service) Analyze(ctx context.Context, text string) (Result, error) {
	res := Classify(text)
	metrics.IncClassification(string(res.Sentiment))
	if s == nil || s.Recorder == nil {
		return res, nil
	}
	return res, s.Recorder.Record(ctx, string(res.Sentiment))
}
