package spend

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/Uuq114/JanusRelay/internal/metrics"
	"github.com/Uuq114/JanusRelay/internal/models"
	"github.com/Uuq114/JanusRelay/internal/request"
)

func TestCost(t *testing.T) {
	upstream := &models.Upstream{Name: "groq", InputPrice: 0.5, OutputPrice: 2}
	usage := request.TokenUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}

	if got := Cost(upstream, usage); got != 13 {
		t.Errorf("Expected cost 13, got %v", got)
	}
}

func TestCost_Unpriced(t *testing.T) {
	upstream := &models.Upstream{Name: "groq"}
	usage := request.TokenUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}

	if got := Cost(upstream, usage); got != 0 {
		t.Errorf("Expected zero cost without prices, got %v", got)
	}
}

func TestRecorder_Record(t *testing.T) {
	m := metrics.New()
	recorder := NewRecorder(m, zap.NewNop())
	upstream := &models.Upstream{Name: "groq", InputPrice: 0.001, OutputPrice: 0.002}

	record := recorder.Record("req-1", upstream, request.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150})
	recorder.Record("req-2", upstream, request.TokenUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30})

	if record.RequestId != "req-1" || record.TotalTokens != 150 {
		t.Errorf("Unexpected record: %+v", record)
	}
	if got := testutil.ToFloat64(m.Tokens.WithLabelValues("groq", "prompt")); got != 120 {
		t.Errorf("Expected 120 prompt tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.Tokens.WithLabelValues("groq", "completion")); got != 60 {
		t.Errorf("Expected 60 completion tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.Spend.WithLabelValues("groq")); math.Abs(got-0.24) > 1e-9 {
		t.Errorf("Expected spend 0.24, got %v", got)
	}
}

func TestRecorder_RecordSkipsNegativeUsage(t *testing.T) {
	tests := []struct {
		name     string
		upstream *models.Upstream
		usage    request.TokenUsage
	}{
		{"negative prompt tokens", &models.Upstream{Name: "groq", InputPrice: 0.001}, request.TokenUsage{PromptTokens: -1, CompletionTokens: 5}},
		{"negative completion tokens", &models.Upstream{Name: "groq"}, request.TokenUsage{PromptTokens: 5, CompletionTokens: -3}},
		{"negative price", &models.Upstream{Name: "groq", InputPrice: -0.000001}, request.TokenUsage{PromptTokens: 10, CompletionTokens: 5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.New()
			recorder := NewRecorder(m, zap.NewNop())

			recorder.Record("req-1", tc.upstream, tc.usage)

			if got := testutil.ToFloat64(m.Tokens.WithLabelValues("groq", "prompt")); got != 0 {
				t.Errorf("Expected no prompt tokens counted, got %v", got)
			}
			if got := testutil.ToFloat64(m.Spend.WithLabelValues("groq")); got != 0 {
				t.Errorf("Expected no spend counted, got %v", got)
			}
		})
	}
}
