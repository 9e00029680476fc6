// Package metrics provides the Prometheus-backed Scope abstraction used by
// the verifier and trust store to report outcome counts and staleness
// gauges, adapted from the teacher's metrics.Scope (metrics/scope.go):
// a small stats-collector interface that lazily registers a Prometheus
// collector the first time a given stat name is touched, so callers never
// have to declare their metrics up front.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scope is a stats collector that prefixes the name of every stat it
// collects, so a component can be handed a sub-Scope without knowing
// where in the metric namespace it lives.
type Scope interface {
	NewScope(scopes ...string) Scope

	Inc(stat string, value int64) error
	IncLabeled(stat string, value int64, labels prometheus.Labels) error
	Gauge(stat string, value int64) error
	GaugeDelta(stat string, value int64) error
	Timing(stat string, delta int64) error
	TimingDuration(stat string, delta time.Duration) error
	SetInt(stat string, value int64) error

	MustRegister(...prometheus.Collector)
}

// promScope is a Scope that sends data to Prometheus.
type promScope struct {
	prometheus.Registerer
	*autoRegisterer
	prefix string
}

var _ Scope = &promScope{}

// NewPromScope returns a Scope that sends data to Prometheus, rooted at
// the dotted path formed by scopes -- e.g. NewPromScope(reg, "verifier")
// then .NewScope("outcomes") yields the "verifier.outcomes." prefix.
func NewPromScope(registerer prometheus.Registerer, scopes ...string) Scope {
	return &promScope{
		Registerer:     registerer,
		prefix:         strings.Join(scopes, ".") + ".",
		autoRegisterer: newAutoRegisterer(registerer),
	}
}

// NewScope generates a new Scope prefixed by this Scope's prefix plus the
// prefixes given, joined by periods.
func (s *promScope) NewScope(scopes ...string) Scope {
	scope := strings.Join(scopes, ".")
	return NewPromScope(s.Registerer, s.prefix+scope)
}

// Inc increments the given stat and adds the Scope's prefix to the name.
func (s *promScope) Inc(stat string, value int64) error {
	s.autoCounter(s.prefix + stat).Add(float64(value))
	return nil
}

// IncLabeled increments a labeled counter vector, used for
// verify_outcomes_total{kind} and refresh_total{url,result}.
func (s *promScope) IncLabeled(stat string, value int64, labels prometheus.Labels) error {
	s.autoCounterVec(s.prefix+stat, labelNames(labels)).With(labels).Add(float64(value))
	return nil
}

// Gauge sends a gauge stat and adds the Scope's prefix to the name.
func (s *promScope) Gauge(stat string, value int64) error {
	s.autoGauge(s.prefix + stat).Set(float64(value))
	return nil
}

// GaugeDelta sends the change in a gauge stat and adds the Scope's prefix
// to the name.
func (s *promScope) GaugeDelta(stat string, value int64) error {
	s.autoGauge(s.prefix + stat).Add(float64(value))
	return nil
}

// Timing sends a latency stat and adds the Scope's prefix to the name.
func (s *promScope) Timing(stat string, delta int64) error {
	s.autoSummary(s.prefix + stat + "_seconds").Observe(float64(delta))
	return nil
}

// TimingDuration sends a latency stat as a time.Duration and adds the
// Scope's prefix to the name.
func (s *promScope) TimingDuration(stat string, delta time.Duration) error {
	s.autoSummary(s.prefix + stat + "_seconds").Observe(delta.Seconds())
	return nil
}

// SetInt sets a stat's integer value and adds the Scope's prefix to the
// name.
func (s *promScope) SetInt(stat string, value int64) error {
	s.autoGauge(s.prefix + stat).Set(float64(value))
	return nil
}

func labelNames(labels prometheus.Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

type noopScope struct{}

// NewNoopScope returns a Scope that won't collect anything, for tests and
// for hosts that don't want a Prometheus registry.
func NewNoopScope() Scope {
	return noopScope{}
}
func (ns noopScope) NewScope(scopes ...string) Scope { return ns }
func (noopScope) Inc(stat string, value int64) error { return nil }
func (noopScope) IncLabeled(stat string, value int64, labels prometheus.Labels) error {
	return nil
}
func (noopScope) Gauge(stat string, value int64) error      { return nil }
func (noopScope) GaugeDelta(stat string, value int64) error { return nil }
func (noopScope) Timing(stat string, delta int64) error     { return nil }
func (noopScope) TimingDuration(stat string, delta time.Duration) error {
	return nil
}
func (noopScope) SetInt(stat string, value int64) error      { return nil }
func (noopScope) MustRegister(...prometheus.Collector)       {}
