package metrics

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "optchain/internal/errors"
)

// PromRegistry registers every Definition as a Prometheus vector.
type PromRegistry struct {
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewPromRegistry creates and registers the vectors on reg under
// namespace. Vectors already registered by an earlier call are reused.
func NewPromRegistry(reg prometheus.Registerer, namespace string) (*PromRegistry, error) {
	r := &PromRegistry{
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}

	for _, d := range Definitions {
		switch d.Type {
		case Counter:
			vec := prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      d.Name,
				Help:      d.Help,
			}, d.Labels)
			c, err := register(reg, vec)
			if err != nil {
				return nil, apperrors.NewMetricsError("failed to register "+d.Name, err)
			}
			r.counters[d.Name] = c
		case Gauge:
			vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      d.Name,
				Help:      d.Help,
			}, d.Labels)
			g, err := register(reg, vec)
			if err != nil {
				return nil, apperrors.NewMetricsError("failed to register "+d.Name, err)
			}
			r.gauges[d.Name] = g
		}
	}

	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// Lookup implements Registry.
func (r *PromRegistry) Lookup(name string) any {
	if c, ok := r.counters[name]; ok {
		return promVec[prometheus.Counter]{bind: c.GetMetricWith}
	}
	if g, ok := r.gauges[name]; ok {
		return promVec[prometheus.Gauge]{bind: g.GetMetricWith}
	}
	return nil
}

type promVec[M any] struct {
	bind func(prometheus.Labels) (M, error)
}

func (v promVec[M]) With(labels map[string]string) (any, error) {
	m, err := v.bind(prometheus.Labels(labels))
	if err != nil {
		return nil, err
	}
	return m, nil
}
