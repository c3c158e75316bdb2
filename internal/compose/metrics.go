// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package compose

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts template cache lookups by result.
type Metrics struct {
	lookups *prometheus.CounterVec
}

// NewMetrics creates the composer metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "graphair",
				Subsystem: "compose",
				Name:      "cache_lookups_total",
				Help:      "Total number of composed query template lookups.",
			},
			[]string{"result"},
		),
	}
	if err := reg.Register(m.lookups); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) hit() {
	if m != nil {
		m.lookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.lookups.WithLabelValues("miss").Inc()
	}
}
