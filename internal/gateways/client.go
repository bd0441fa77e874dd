package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/ar-collections/pkg/logger"
	"github.com/nimasrn/ar-collections/pkg/prom"
	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// StatusError is returned for any non 2xx answer.
type StatusError struct {
	Target string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d, body: %s", e.Target, e.Code, e.Body)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == fasthttp.StatusTooManyRequests
}

type TargetMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func NewTargetMetrics() *TargetMetrics {
	return &TargetMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *TargetMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *TargetMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *TargetMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *TargetMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *TargetMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

// BreakerConfig controls when a target stops receiving calls.
type BreakerConfig struct {
	// consecutive failures that open the circuit
	Threshold uint32
	// how long the circuit stays open before a trial request
	Timeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold == 0 {
		c.Threshold = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// target is one remote endpoint guarded by its own circuit breaker.
type target struct {
	name    string
	baseURL string
	client  *fasthttp.Client
	breaker *gobreaker.CircuitBreaker
	metrics *TargetMetrics
	timeout time.Duration
}

func newTarget(name, baseURL string, client *fasthttp.Client, timeout time.Duration, bc BreakerConfig) *target {
	bc = bc.withDefaults()
	t := &target{
		name:    name,
		baseURL: baseURL,
		client:  client,
		metrics: NewTargetMetrics(),
		timeout: timeout,
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.Threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "target", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			// a rejected request says nothing about the health of the target
			return errors.As(err, &se) && !se.Temporary()
		},
	})
	return t
}

type request struct {
	method string
	path   string
	body   []byte
	auth   func(req *fasthttp.Request)
}

// do performs the call through the breaker and returns a copy of the body.
func (t *target) do(ctx context.Context, r request) ([]byte, error) {
	start := time.Now()
	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.doRequest(ctx, r)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			prom.ObserveGatewayCall(t.name, "rejected", elapsed.Seconds())
			return nil, fmt.Errorf("%s: %w", t.name, ErrCircuitOpen)
		}
		t.metrics.RecordFailure()
		prom.ObserveGatewayCall(t.name, "error", elapsed.Seconds())
		return nil, err
	}

	t.metrics.RecordSuccess(elapsed.Milliseconds())
	prom.ObserveGatewayCall(t.name, "ok", elapsed.Seconds())
	return out.([]byte), nil
}

func (t *target) doRequest(ctx context.Context, r request) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(t.baseURL + r.path)
	req.Header.SetMethod(r.method)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(r.body)
	}
	if r.auth != nil {
		r.auth(req)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.timeout)
	}

	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", t.name, err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode > 299 {
		return nil, &StatusError{Target: t.name, Code: statusCode, Body: string(resp.Body())}
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}

func (t *target) stats() TargetStats {
	return TargetStats{
		Name:             t.name,
		URL:              t.baseURL,
		State:            t.breaker.State().String(),
		TotalRequests:    t.metrics.TotalRequests.Load(),
		SuccessfulReqs:   t.metrics.SuccessfulReqs.Load(),
		FailedReqs:       t.metrics.FailedReqs.Load(),
		SuccessRate:      t.metrics.SuccessRate(),
		AvgLatencyMs:     t.metrics.AvgLatencyMs(),
		P95LatencyMs:     t.metrics.P95LatencyMs(),
		LastLatencyMs:    t.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: t.metrics.ConsecutiveFails.Load(),
	}
}

type TargetStats struct {
	Name             string  `json:"name"`
	URL              string  `json:"url"`
	State            string  `json:"state"`
	TotalRequests    int64   `json:"total_requests"`
	SuccessfulReqs   int64   `json:"successful_requests"`
	FailedReqs       int64   `json:"failed_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AvgLatencyMs     int64   `json:"avg_latency_ms"`
	P95LatencyMs     int64   `json:"p95_latency_ms"`
	LastLatencyMs    int64   `json:"last_latency_ms"`
	ConsecutiveFails int32   `json:"consecutive_fails"`
}

func newHTTPClient(timeout time.Duration, maxConns int) *fasthttp.Client {
	if maxConns == 0 {
		maxConns = 64
	}
	return &fasthttp.Client{
		MaxConnsPerHost:     maxConns,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}
}
