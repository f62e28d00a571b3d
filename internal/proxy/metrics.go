package proxy

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"f2phelper/internal/engine"
)

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	pages    *prometheus.CounterVec
	actions  *prometheus.CounterVec
	cache    *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

func newMetrics(reg *prometheus.Registry) (*metrics, error) {
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "f2phelper",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "f2phelper",
			Name:      "pages_annotated_total",
			Help:      "Wiki pages annotated, by membership classification.",
		}, []string{"class"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "f2phelper",
			Name:      "engine_actions_total",
			Help:      "DOM writes applied while annotating pages, by kind.",
		}, []string{"kind"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "f2phelper",
			Name:      "page_cache_lookups_total",
			Help:      "Upstream page cache lookups, by result.",
		}, []string{"result"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "f2phelper",
			Name:      "upstream_fetch_seconds",
			Help:      "Upstream page fetch latency, by fetch mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.pages, m.actions, m.cache, m.upstream} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observePage(class engine.Classification, actions []engine.Action) {
	m.pages.WithLabelValues(class.String()).Inc()
	for _, a := range actions {
		m.actions.WithLabelValues(a.Kind.String()).Inc()
	}
}
