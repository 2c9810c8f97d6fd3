package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Uuq114/JanusRelay/internal/balancer"
	"github.com/Uuq114/JanusRelay/internal/config"
	"github.com/Uuq114/JanusRelay/internal/metrics"
	"github.com/Uuq114/JanusRelay/internal/models"
	"github.com/Uuq114/JanusRelay/internal/proxy"
	"github.com/Uuq114/JanusRelay/internal/request"
	"github.com/Uuq114/JanusRelay/internal/spend"
)

// newRelay wires the real proxy to a single upstream, the way main does.
func newRelay(t *testing.T, cfg *config.Config, upstream models.Upstream) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New()

	b, err := balancer.New(cfg.Strategy)
	if err != nil {
		t.Fatalf("balancer.New failed: %v", err)
	}
	b.AddUpstream(&upstream)

	p := proxy.NewProxy(b, cfg.RequestTimeout, spend.NewRecorder(m, logger), m, logger)
	router := NewRouter(cfg, NewHandler(p, logger), m, logger)
	return WithCORS(cfg, router)
}

func completionServer(t *testing.T, content string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(request.ChatRespBody{
			Id:    "chatcmpl-1",
			Model: request.Model,
			Choices: []request.Choice{
				{Message: &request.ReplyMessage{Role: "assistant", Content: &content}},
			},
			Usage: request.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRelay_Success(t *testing.T) {
	upstream := completionServer(t, "hi there", nil)
	relay := newRelay(t, newTestConfig(), models.Upstream{Name: "groq", BaseURL: upstream.URL, APIKey: "test-key"})

	recorder := postChat(relay, `{"message":"hello"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}
	if reply := decodeReply(t, recorder); reply.Reply != "hi there" {
		t.Errorf("Expected reply 'hi there', got %q", reply.Reply)
	}
}

func TestRelay_NegativePriceStillReplies(t *testing.T) {
	upstream := completionServer(t, "hi there", nil)
	relay := newRelay(t, newTestConfig(), models.Upstream{
		Name: "groq", BaseURL: upstream.URL, APIKey: "test-key", InputPrice: -0.000001,
	})

	recorder := postChat(relay, `{"message":"hello"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", recorder.Code, recorder.Body.String())
	}
	if reply := decodeReply(t, recorder); reply.Reply != "hi there" {
		t.Errorf("Expected reply 'hi there', got %q", reply.Reply)
	}
}

func TestRelay_MissingKeyMakesNoCall(t *testing.T) {
	var hits int32
	upstream := completionServer(t, "unused", &hits)
	relay := newRelay(t, newTestConfig(), models.Upstream{Name: "groq", BaseURL: upstream.URL})

	recorder := postChat(relay, `{"message":"hello"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	want := "Error: GROQ_API_KEY not found in environment variables"
	if reply := decodeReply(t, recorder); reply.Reply != want {
		t.Errorf("Expected reply %q, got %q", want, reply.Reply)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("Expected no upstream call, got %d", got)
	}
}

func TestRelay_UpstreamStatusPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer upstream.Close()
	relay := newRelay(t, newTestConfig(), models.Upstream{Name: "groq", BaseURL: upstream.URL, APIKey: "test-key"})

	recorder := postChat(relay, `{"message":"hello"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	if reply := decodeReply(t, recorder); reply.Reply != "Error from Groq API: 503 - overloaded" {
		t.Errorf("Unexpected reply %q", reply.Reply)
	}
}

func TestRelay_Timeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	cfg := newTestConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	relay := newRelay(t, cfg, models.Upstream{Name: "groq", BaseURL: upstream.URL, APIKey: "test-key"})

	recorder := postChat(relay, `{"message":"hello"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", recorder.Code)
	}
	if reply := decodeReply(t, recorder); !strings.HasPrefix(reply.Reply, "Network error:") {
		t.Errorf("Expected a network error reply, got %q", reply.Reply)
	}
}

func TestRelay_Idempotent(t *testing.T) {
	var hits int32
	upstream := completionServer(t, "same answer", &hits)
	relay := newRelay(t, newTestConfig(), models.Upstream{Name: "groq", BaseURL: upstream.URL, APIKey: "test-key"})

	first := decodeReply(t, postChat(relay, `{"message":"hello"}`))
	second := decodeReply(t, postChat(relay, `{"message":"hello"}`))

	if first.Reply != second.Reply {
		t.Errorf("Expected identical replies, got %q and %q", first.Reply, second.Reply)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("Expected one upstream call per request, got %d", got)
	}
}

func TestRelay_CORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    string
		origin     string
		wantHeader string
	}{
		{"any origin", config.AnyOrigin, "https://somewhere.example", "*"},
		{"configured origin", "https://app.example.com", "https://app.example.com", "https://app.example.com"},
		{"foreign origin", "https://app.example.com", "https://evil.example", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig()
			cfg.AllowedOrigin = tc.allowed
			relay := newRelay(t, cfg, models.Upstream{Name: "groq"})

			req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			recorder := httptest.NewRecorder()
			relay.ServeHTTP(recorder, req)

			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.wantHeader {
				t.Errorf("Expected Access-Control-Allow-Origin %q, got %q", tc.wantHeader, got)
			}
		})
	}
}

func TestRelay_MetricsEndpoint(t *testing.T) {
	upstream := completionServer(t, "hi", nil)
	cfg := newTestConfig()
	cfg.MetricsToken = "scrape-secret"
	relay := newRelay(t, cfg, models.Upstream{Name: "groq", BaseURL: upstream.URL, APIKey: "test-key"})

	postChat(relay, `{"message":"hello"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recorder := httptest.NewRecorder()
	relay.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 without token, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape-secret")
	recorder = httptest.NewRecorder()
	relay.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status 200 with token, got %d", recorder.Code)
	}

	body := recorder.Body.String()
	for _, want := range []string{
		`janus_relay_upstream_calls_total{outcome="ok",upstream="groq"} 1`,
		`janus_relay_tokens_total{kind="prompt",upstream="groq"} 10`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

func TestNewHTTPServer(t *testing.T) {
	cfg := newTestConfig()
	cfg.Port = "5000"
	cfg.RequestTimeout = 30 * time.Second

	server := NewHTTPServer(cfg, NewRouter(cfg, NewHandler(nil, zap.NewNop()), metrics.New(), zap.NewNop()))

	if server.Addr != ":5000" {
		t.Errorf("Expected addr ':5000', got %q", server.Addr)
	}
	if server.WriteTimeout <= cfg.RequestTimeout {
		t.Errorf("Write timeout %v must exceed the request timeout %v", server.WriteTimeout, cfg.RequestTimeout)
	}
}
