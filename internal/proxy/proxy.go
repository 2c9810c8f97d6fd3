package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gopkg.in/resty.v1"

	"github.com/Uuq114/JanusRelay/internal/balancer"
	"github.com/Uuq114/JanusRelay/internal/metrics"
	"github.com/Uuq114/JanusRelay/internal/request"
	"github.com/Uuq114/JanusRelay/internal/spend"
)

var errNoContent = errors.New("no choices[0].message.content in upstream response")

// Proxy is the completion client: one upstream call per Complete, never retried.
type Proxy struct {
	balancer balancer.Balancer
	client   *resty.Client
	spend    *spend.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewProxy(b balancer.Balancer, timeout time.Duration, recorder *spend.Recorder, m *metrics.Metrics, logger *zap.Logger) *Proxy {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(zap.NewStdLog(logger).Writer())

	return &Proxy{
		balancer: b,
		client:   client,
		spend:    recorder,
		metrics:  m,
		logger:   logger,
	}
}

// Complete sends message as the single user turn and maps every failure into the Result.
func (p *Proxy) Complete(ctx context.Context, requestId string, message string) Result {
	result := p.complete(ctx, requestId, message)
	p.metrics.UpstreamCalls.WithLabelValues(result.Upstream, result.Outcome.String()).Inc()
	return result
}

func (p *Proxy) complete(ctx context.Context, requestId string, message string) Result {
	upstream := p.balancer.Next()
	if !upstream.HasKey() {
		name := ""
		if upstream != nil {
			name = upstream.Name
		}
		p.logger.Warn("no API key configured", zap.String("upstream", name))
		return Result{Outcome: OutcomeMissingKey, Upstream: name}
	}

	log := p.logger.With(zap.String("request_id", requestId), zap.String("upstream", upstream.Name))
	start := time.Now()

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(upstream.APIKey).
		SetBody(request.NewChatReqBody(message)).
		Post(upstream.BaseURL)
	if err != nil {
		outcome := OutcomeUnexpected
		if isTransport(err) {
			outcome = OutcomeTransport
		}
		log.Error("upstream request failed", zap.Error(err), zap.Stringer("outcome", outcome))
		return Result{Outcome: outcome, Upstream: upstream.Name, Err: err}
	}

	log.Info("upstream responded",
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode() != http.StatusOK {
		body := string(resp.Body())
		log.Error("upstream returned error status", zap.Int("status", resp.StatusCode()), zap.String("body", body))
		return Result{
			Outcome:    OutcomeUpstreamStatus,
			Upstream:   upstream.Name,
			StatusCode: resp.StatusCode(),
			Body:       body,
		}
	}

	var out request.ChatRespBody
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		err = fmt.Errorf("decode upstream response: %w", err)
		log.Error("unexpected upstream response", zap.Error(err))
		return Result{Outcome: OutcomeUnexpected, Upstream: upstream.Name, StatusCode: resp.StatusCode(), Err: err}
	}
	content, ok := out.Content()
	if !ok {
		log.Error("unexpected upstream response", zap.Error(errNoContent))
		return Result{Outcome: OutcomeUnexpected, Upstream: upstream.Name, StatusCode: resp.StatusCode(), Err: errNoContent}
	}

	p.spend.Record(requestId, upstream, out.Usage)

	return Result{
		Outcome:    OutcomeOK,
		Upstream:   upstream.Name,
		Content:    content,
		Usage:      out.Usage,
		StatusCode: resp.StatusCode(),
	}
}

// isTransport reports whether err came from reaching the upstream rather than from building the request.
func isTransport(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
