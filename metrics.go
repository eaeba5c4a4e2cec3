package leadpress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the App's collectors on a private registry so several Apps
// (tests) can coexist in one process.
type metrics struct {
	registry   *prometheus.Registry
	llmCalls   *prometheus.CounterVec
	ssrRenders *prometheus.CounterVec
	contacts   *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpress",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Gateway calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		ssrRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpress",
			Subsystem: "ssr",
			Name:      "renders_total",
			Help:      "SSR documents served by kind and client class.",
		}, []string{"kind", "client"}),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpress",
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact form submissions by source and outcome.",
		}, []string{"source", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmCalls,
		m.ssrRenders,
		m.contacts,
	)
	return m
}
