package monitoring

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestCollector_RecordCall(t *testing.T) {
	c := NewCollector(nextTestNamespace())

	c.RecordCall("generator", 100, 50, 250.0, false)
	c.RecordCall("generator", 80, 40, 200.0, true)

	assert.Greater(t, testutil.CollectAndCount(c.callsTotal), 0)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.TotalCalls)
	assert.Equal(t, 270, snap.TotalTokens)
	assert.Equal(t, 450.0, snap.TotalLatencyMS)
	assert.Equal(t, 1, snap.CacheHits)
	assert.Equal(t, 2, snap.PerAgentCounts["generator"])
}

func TestCollector_RecordRetryAndFallback(t *testing.T) {
	c := NewCollector(nextTestNamespace())

	c.RecordRetry("critic")
	c.RecordRetry("critic")
	c.RecordFallback("inference")

	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Retries)
	assert.Equal(t, 1, snap.FallbackEvents)
}

func TestCollector_EstimatedCost(t *testing.T) {
	c := NewCollector(nextTestNamespace()).WithCostPerToken(0.00001, 0.00003)
	c.RecordCall("generator", 1000, 1000, 10.0, false)

	snap := c.Snapshot()
	assert.InDelta(t, 2000*(0.00001+0.00003)/2, snap.EstimatedCost, 1e-9)
}

func TestCollector_SnapshotIsIndependentCopy(t *testing.T) {
	c := NewCollector(nextTestNamespace())
	c.RecordCall("generator", 10, 10, 5, false)

	snap := c.Snapshot()
	snap.PerAgentCounts["generator"] = 999

	fresh := c.Snapshot()
	assert.Equal(t, 1, fresh.PerAgentCounts["generator"])
}
