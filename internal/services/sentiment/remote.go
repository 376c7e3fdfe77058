package sentiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/services/history"
	xhttp "FinFusion/pkg/http"
	"FinFusion/pkg/logger"
)

// RemoteAgent delegates sentiment analysis to an external HTTP service.
// Any transport or decoding failure yields DefaultAnalysis.
type RemoteAgent struct {
	url      string
	client   *xhttp.Client
	timeout  time.Duration
	attempts int
	history  *history.Store
	log      *logger.Logger
}

var _ service.SubjectivityAgent = (*RemoteAgent)(nil)

type remoteRequest struct {
	Signal           models.MarketSignal `json:"signal"`
	RecentSentiments []float64           `json:"recent_sentiments"`
}

func NewRemoteAgent(url string, timeout time.Duration, capacity int, log *logger.Logger) *RemoteAgent {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RemoteAgent{
		url:      url,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		timeout:  timeout,
		attempts: 2,
		history:  history.NewStore(capacity),
		log:      log.With(logger.String("agent", "subjectivity"), logger.String("mode", "remote")),
	}
}

func (a *RemoteAgent) Observe(symbol string, score float64, ts time.Time) {
	a.history.Record(symbol, score, ts)
}

func (a *RemoteAgent) Analyze(ctx context.Context, signal models.MarketSignal) models.SubjectivityAnalysis {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := remoteRequest{
		Signal:           signal,
		RecentSentiments: a.history.Values(signal.Symbol, 5),
	}

	var out models.SubjectivityAnalysis
	if err := a.postWithRetry(ctx, req, &out); err != nil {
		a.log.Warn("remote sentiment unavailable, using neutral stance",
			logger.String("symbol", signal.Symbol),
			logger.Error(err),
		)
		return DefaultAnalysis()
	}
	if out.EmotionAnalysis == nil {
		out.EmotionAnalysis = map[string]float64{}
	}
	if out.MarketPsychology == nil {
		out.MarketPsychology = map[string]float64{"fear_greed_index": 50}
	}
	out.SentimentScore = clamp(out.SentimentScore, -1, 1)
	out.Confidence = clamp(out.Confidence, 0, 1)
	return out
}

func (a *RemoteAgent) postWithRetry(ctx context.Context, payload, dest interface{}) error {
	if a.url == "" {
		return errors.New("sentiment service url not configured")
	}
	var err error
	for i := 1; i <= a.attempts; i++ {
		if err = a.client.PostJSON(ctx, a.url, payload, dest); err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("post %s: %w", a.url, err)
}
