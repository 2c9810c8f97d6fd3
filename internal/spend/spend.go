package spend

import (
	"go.uber.org/zap"

	"github.com/Uuq114/JanusRelay/internal/metrics"
	"github.com/Uuq114/JanusRelay/internal/models"
	"github.com/Uuq114/JanusRelay/internal/request"
)

// SpendRecord is the accounting view of one successful completion.
type SpendRecord struct {
	RequestId        string
	Upstream         string
	Spend            float64
	TotalTokens      int
	PromptTokens     int
	CompletionTokens int
}

// Recorder turns upstream usage into counters and a log line. Nothing is stored.
type Recorder struct {
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRecorder(m *metrics.Metrics, logger *zap.Logger) *Recorder {
	return &Recorder{metrics: m, logger: logger}
}

// Cost prices usage with the upstream's per-token prices.
func Cost(upstream *models.Upstream, usage request.TokenUsage) float64 {
	return upstream.InputPrice*float64(usage.PromptTokens) +
		upstream.OutputPrice*float64(usage.CompletionTokens)
}

func (r *Recorder) Record(requestId string, upstream *models.Upstream, usage request.TokenUsage) SpendRecord {
	record := SpendRecord{
		RequestId:        requestId,
		Upstream:         upstream.Name,
		Spend:            Cost(upstream, usage),
		TotalTokens:      usage.TotalTokens,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}

	// counters cannot decrease
	if record.PromptTokens < 0 || record.CompletionTokens < 0 || record.Spend < 0 {
		r.logger.Warn("skipping negative usage",
			zap.String("request_id", record.RequestId),
			zap.String("upstream", record.Upstream),
			zap.Int("prompt_tokens", record.PromptTokens),
			zap.Int("completion_tokens", record.CompletionTokens),
			zap.Float64("spend", record.Spend),
		)
		return record
	}

	r.metrics.Tokens.WithLabelValues(record.Upstream, "prompt").Add(float64(record.PromptTokens))
	r.metrics.Tokens.WithLabelValues(record.Upstream, "completion").Add(float64(record.CompletionTokens))
	r.metrics.Spend.WithLabelValues(record.Upstream).Add(record.Spend)

	r.logger.Debug("completion usage",
		zap.String("request_id", record.RequestId),
		zap.String("upstream", record.Upstream),
		zap.Int("prompt_tokens", record.PromptTokens),
		zap.Int("completion_tokens", record.CompletionTokens),
		zap.Int("total_tokens", record.TotalTokens),
		zap.Float64("spend", record.Spend),
	)

	return record
}
