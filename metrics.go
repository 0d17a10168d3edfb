// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specbind

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultCounterSuffix is appended to every counter name, following the
// Prometheus convention for monotonic counters.
const defaultCounterSuffix = "_total"

// Counter is one named, monotonically increasing counter. Inc must be safe
// for concurrent use.
type Counter interface {
	Inc()
}

// Metrics hands out named counters for the binder's per-route hooks. The
// binder resolves counters once at registration time and increments them per
// request, so Counter is called with a small, fixed set of names.
type Metrics interface {
	Counter(name string) Counter
}

// PrometheusMetrics is a [Metrics] backed by a Prometheus registerer.
// Counters are created on first use and cached. Safe for concurrent use;
// increments are atomic.
type PrometheusMetrics struct {
	reg    prometheus.Registerer
	suffix string

	mu       sync.Mutex
	counters map[string]prometheus.Counter
}

// MetricsOption configures [NewPrometheusMetrics].
type MetricsOption func(*PrometheusMetrics)

// WithCounterSuffix overrides the "_total" counter name suffix.
func WithCounterSuffix(suffix string) MetricsOption {
	return func(m *PrometheusMetrics) {
		m.suffix = suffix
	}
}

// NewPrometheusMetrics creates a metrics sink registering counters with reg.
// A nil reg uses the default Prometheus registerer.
//
// Example:
//
//	metrics := specbind.NewPrometheusMetrics(prometheus.DefaultRegisterer)
//	binder, err := specbind.New(
//		specbind.WithSpecFile("widgets.yaml"),
//		specbind.WithService(svc),
//		specbind.WithMetrics(metrics),
//	)
func NewPrometheusMetrics(reg prometheus.Registerer, opts ...MetricsOption) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		reg:      reg,
		suffix:   defaultCounterSuffix,
		counters: make(map[string]prometheus.Counter),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Counter returns the counter for name, creating and registering it on first
// use. Names are sanitized to the Prometheus character set.
func (m *PrometheusMetrics) Counter(name string) Counter {
	full := sanitizeMetricName(name) + m.suffix

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[full]; ok {
		return c
	}

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: full,
		Help: "Requests dispatched through the route bound for " + name + ".",
	})
	if err := m.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				c = existing
			}
		}
	}
	m.counters[full] = c

	return c
}

// sanitizeMetricName maps arbitrary operation names onto the Prometheus
// metric name alphabet.
func sanitizeMetricName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}

	return b.String()
}
