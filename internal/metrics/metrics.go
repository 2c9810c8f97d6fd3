package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Uuq114/JanusRelay/internal/auth"
)

const namespace = "janus_relay"

// Metrics owns a private registry so several instances can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	Requests      *prometheus.CounterVec
	UpstreamCalls *prometheus.CounterVec
	Tokens        *prometheus.CounterVec
	Spend         *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		Requests: counterVec(registry, "http_requests_total",
			"Inbound requests by route and status code.", []string{"route", "status"}),
		UpstreamCalls: counterVec(registry, "upstream_calls_total",
			"Outbound completion calls by upstream and outcome.", []string{"upstream", "outcome"}),
		Tokens: counterVec(registry, "tokens_total",
			"Tokens reported by upstreams.", []string{"upstream", "kind"}),
		Spend: counterVec(registry, "spend_total",
			"Estimated spend from configured token prices.", []string{"upstream"}),
	}

	return m
}

func counterVec(registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	registry.MustRegister(vec)
	return vec
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry. A non-empty token requires a matching bearer header.
func (m *Metrics) Handler(token string) http.Handler {
	return guarded{
		token: token,
		next:  promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}),
	}
}

type guarded struct {
	token string
	next  http.Handler
}

func (h guarded) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if h.token != "" && !auth.CheckBearer(request.Header.Get("Authorization"), h.token) {
		writer.WriteHeader(http.StatusUnauthorized)
		return
	}

	h.next.ServeHTTP(writer, request)
}
