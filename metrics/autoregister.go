package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// autoRegisterer lazily creates and registers a Prometheus collector the
// first time a given stat name is used, keyed by name so repeated calls
// reuse the same collector instead of panicking on double-registration.
type autoRegisterer struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	counterVec map[string]*prometheus.CounterVec
	gauges     map[string]prometheus.Gauge
	summaries  map[string]prometheus.Summary
}

func newAutoRegisterer(registerer prometheus.Registerer) *autoRegisterer {
	return &autoRegisterer{
		registerer: registerer,
		counters:   make(map[string]prometheus.Counter),
		counterVec: make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]prometheus.Gauge),
		summaries:  make(map[string]prometheus.Summary),
	}
}

func (a *autoRegisterer) autoCounter(name string) prometheus.Counter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: sanitize(name), Help: name})
	a.registerer.MustRegister(c)
	a.counters[name] = c
	return c
}

func (a *autoRegisterer) autoCounterVec(name string, labels []string) *prometheus.CounterVec {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.counterVec[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: sanitize(name), Help: name}, labels)
	a.registerer.MustRegister(c)
	a.counterVec[name] = c
	return c
}

func (a *autoRegisterer) autoGauge(name string) prometheus.Gauge {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: sanitize(name), Help: name})
	a.registerer.MustRegister(g)
	a.gauges[name] = g
	return g
}

func (a *autoRegisterer) autoSummary(name string) prometheus.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.summaries[name]; ok {
		return s
	}
	s := prometheus.NewSummary(prometheus.SummaryOpts{Name: sanitize(name), Help: name})
	a.registerer.MustRegister(s)
	a.summaries[name] = s
	return s
}

// sanitize replaces the dotted-path separators the Scope naming scheme
// uses with underscores, since Prometheus metric names may not contain
// periods.
func sanitize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if c := name[i]; c == '.' || c == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
