package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"marketresearch/internal/adapters/ai"
)

// UsageCollector exposes accumulated model usage and optional Redis pool stats at scrape time.
type UsageCollector struct {
	usage *ai.UsageTracker
	redis *redis.Client

	modelCalls  *prometheus.Desc
	modelTokens *prometheus.Desc
	modelCost   *prometheus.Desc
	redisConns  *prometheus.Desc
}

// NewUsageCollector creates a collector. redisClient may be nil.
func NewUsageCollector(usage *ai.UsageTracker, redisClient *redis.Client) *UsageCollector {
	return &UsageCollector{
		usage: usage,
		redis: redisClient,

		modelCalls: prometheus.NewDesc(
			"marketresearch_model_calls",
			"Model calls since process start",
			[]string{"model"}, nil,
		),
		modelTokens: prometheus.NewDesc(
			"marketresearch_model_tokens",
			"Tokens consumed since process start",
			[]string{"model", "type"}, nil,
		),
		modelCost: prometheus.NewDesc(
			"marketresearch_model_cost_usd",
			"Estimated model spend since process start",
			[]string{"model"}, nil,
		),
		redisConns: prometheus.NewDesc(
			"marketresearch_redis_pool_connections",
			"Redis pool connections by state",
			[]string{"state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *UsageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.modelCalls
	ch <- c.modelTokens
	ch <- c.modelCost
	ch <- c.redisConns
}

// Collect implements prometheus.Collector
func (c *UsageCollector) Collect(ch chan<- prometheus.Metric) {
	if c.usage != nil {
		for _, u := range c.usage.Snapshot() {
			ch <- prometheus.MustNewConstMetric(c.modelCalls, prometheus.CounterValue, float64(u.Calls), u.Model)
			ch <- prometheus.MustNewConstMetric(c.modelTokens, prometheus.CounterValue, float64(u.InputTokens), u.Model, "input")
			ch <- prometheus.MustNewConstMetric(c.modelTokens, prometheus.CounterValue, float64(u.OutputTokens), u.Model, "output")
			ch <- prometheus.MustNewConstMetric(c.modelCost, prometheus.CounterValue, u.CostUSD.InexactFloat64(), u.Model)
		}
	}

	if c.redis != nil {
		stats := c.redis.PoolStats()
		ch <- prometheus.MustNewConstMetric(c.redisConns, prometheus.GaugeValue, float64(stats.TotalConns), "total")
		ch <- prometheus.MustNewConstMetric(c.redisConns, prometheus.GaugeValue, float64(stats.IdleConns), "idle")
	}
}
