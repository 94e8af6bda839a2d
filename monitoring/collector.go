// Package monitoring implements MadSpark's per-agent call accounting
// (spec.md §4.K): six Prometheus counters recorded around every provider
// call, with a read-only snapshot merged into domain.UsageSummary.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/madspark/orchestrator/domain"
)

// Collector records provider-call counters, broken down by agent name.
type Collector struct {
	callsTotal     *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	latencyMSTotal *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	cacheHitsTotal *prometheus.CounterVec
	fallbackTotal  *prometheus.CounterVec

	mu             sync.Mutex
	perAgentCounts map[string]int
	totalCalls     int
	totalTokens    int
	totalLatencyMS float64
	cacheHits      int
	retries        int
	fallbackEvents int
	costPerInput   float64
	costPerOutput  float64
}

// NewCollector registers MadSpark's counters under namespace (e.g.
// "madspark") and returns a Collector ready to record calls.
func NewCollector(namespace string) *Collector {
	return &Collector{
		callsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calls_total", Help: "Total provider calls issued",
		}, []string{"agent"}),
		tokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tokens_total", Help: "Total tokens consumed",
		}, []string{"agent"}),
		latencyMSTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "latency_ms_total", Help: "Total provider latency in milliseconds",
		}, []string{"agent"}),
		retriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "retries_total", Help: "Total retry attempts",
		}, []string{"agent"}),
		cacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Total cache hits",
		}, []string{"agent"}),
		fallbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fallback_total", Help: "Total stage-degraded fallback events",
		}, []string{"agent"}),
		perAgentCounts: make(map[string]int),
	}
}

// WithCostPerToken configures the (input, output) USD/token rates used to
// estimate WorkflowResult.Usage.EstimatedCost.
func (c *Collector) WithCostPerToken(input, output float64) *Collector {
	c.costPerInput = input
	c.costPerOutput = output
	return c
}

// RecordCall records one provider call's outcome for agent. A cached
// response counts as a cache hit and in the per-agent count, but not as
// a provider call in TotalCalls.
func (c *Collector) RecordCall(agent string, promptTokens, completionTokens int, latencyMS float64, cached bool) {
	if !cached {
		c.callsTotal.WithLabelValues(agent).Inc()
	}
	totalTokens := promptTokens + completionTokens
	c.tokensTotal.WithLabelValues(agent).Add(float64(totalTokens))
	c.latencyMSTotal.WithLabelValues(agent).Add(latencyMS)
	if cached {
		c.cacheHitsTotal.WithLabelValues(agent).Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.perAgentCounts[agent]++
	c.totalTokens += totalTokens
	c.totalLatencyMS += latencyMS
	if cached {
		c.cacheHits++
	} else {
		c.totalCalls++
	}
}

// RecordRetry records one retry attempt for agent.
func (c *Collector) RecordRetry(agent string) {
	c.retriesTotal.WithLabelValues(agent).Inc()
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

// RecordFallback records one stage-degraded fallback event for agent.
func (c *Collector) RecordFallback(agent string) {
	c.fallbackTotal.WithLabelValues(agent).Inc()
	c.mu.Lock()
	c.fallbackEvents++
	c.mu.Unlock()
}

// Snapshot returns the current counters as a domain.UsageSummary.
func (c *Collector) Snapshot() domain.UsageSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	perAgent := make(map[string]int, len(c.perAgentCounts))
	for k, v := range c.perAgentCounts {
		perAgent[k] = v
	}

	return domain.UsageSummary{
		TotalCalls:     c.totalCalls,
		TotalTokens:    c.totalTokens,
		TotalLatencyMS: c.totalLatencyMS,
		EstimatedCost:  float64(c.totalTokens) * (c.costPerInput + c.costPerOutput) / 2,
		PerAgentCounts: perAgent,
		CacheHits:      c.cacheHits,
		Retries:        c.retries,
		FallbackEvents: c.fallbackEvents,
	}
}
