package api

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeHTTPError = "http_error"
	outcomeTransport = "transport_error"

	requestsMetricName = "comdesk_requests_total"
)

// metrics lives in a per-client registry so several clients (tests, tools)
// never collide on registration.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: requestsMetricName,
				Help: "Requests issued to the dashboard server by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comdesk_request_duration_seconds",
				Help:    "Latency of requests to the dashboard server",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
	m.registry.MustRegister(m.requests, m.duration)
	return m
}

func (m *metrics) count(endpoint, outcome string) {
	m.requests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *metrics) observe(endpoint string, d time.Duration) {
	m.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Registry exposes the client's metric registry.
func (c *Client) Registry() *prometheus.Registry {
	return c.metrics.registry
}

// RequestCounts returns issued request totals keyed "endpoint/outcome".
func (c *Client) RequestCounts() map[string]float64 {
	counts := map[string]float64{}
	families, err := c.metrics.registry.Gather()
	if err != nil {
		return counts
	}
	for _, family := range families {
		if family.GetName() != requestsMetricName {
			continue
		}
		for _, metric := range family.GetMetric() {
			var endpoint, outcome string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "endpoint":
					endpoint = label.GetValue()
				case "outcome":
					outcome = label.GetValue()
				}
			}
			counts[endpoint+"/"+outcome] = metric.GetCounter().GetValue()
		}
	}
	return counts
}

// TotalRequests sums issued requests for endpoint across outcomes.
func (c *Client) TotalRequests(endpoint string) float64 {
	var total float64
	for key, value := range c.RequestCounts() {
		if strings.HasPrefix(key, endpoint+"/") {
			total += value
		}
	}
	return total
}
