package metrics

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "optchain/internal/errors"
)

// OTelRegistry creates one OpenTelemetry instrument per Definition.
// Counters map to Float64Counter and gauges to Float64Gauge.
type OTelRegistry struct {
	instruments map[string]any
	labels      map[string][]string
}

// NewOTelRegistry creates the instruments on meter. namespace is
// prepended to every instrument name with an underscore.
func NewOTelRegistry(meter metric.Meter, namespace string) (*OTelRegistry, error) {
	r := &OTelRegistry{
		instruments: make(map[string]any),
		labels:      make(map[string][]string),
	}

	for _, d := range Definitions {
		name := d.Name
		if namespace != "" {
			name = namespace + "_" + name
		}

		switch d.Type {
		case Counter:
			c, err := meter.Float64Counter(name, metric.WithDescription(d.Help))
			if err != nil {
				return nil, apperrors.NewMetricsError("failed to create counter "+name, err)
			}
			r.instruments[d.Name] = otelCounter{c: c}
		case Gauge:
			g, err := meter.Float64Gauge(name, metric.WithDescription(d.Help))
			if err != nil {
				return nil, apperrors.NewMetricsError("failed to create gauge "+name, err)
			}
			r.instruments[d.Name] = otelGauge{g: g}
		}
		r.labels[d.Name] = d.Labels
	}

	return r, nil
}

// Lookup implements Registry.
func (r *OTelRegistry) Lookup(name string) any {
	inst, ok := r.instruments[name]
	if !ok {
		return nil
	}
	return otelVec{keys: r.labels[name], inst: inst}
}

type otelVec struct {
	keys []string
	inst any
}

func (v otelVec) With(labels map[string]string) (any, error) {
	if err := checkLabels(v.keys, labels); err != nil {
		return nil, err
	}
	opt := metric.WithAttributeSet(attributeSet(labels))

	switch inst := v.inst.(type) {
	case otelCounter:
		inst.opts = []metric.AddOption{opt}
		return inst, nil
	case otelGauge:
		inst.opts = []metric.RecordOption{opt}
		return inst, nil
	}
	return v.inst, nil
}

func attributeSet(labels map[string]string) attribute.Set {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, attribute.String(k, labels[k]))
	}
	return attribute.NewSet(kvs...)
}

type otelCounter struct {
	c    metric.Float64Counter
	opts []metric.AddOption
}

func (o otelCounter) Add(v float64) {
	o.c.Add(context.Background(), v, o.opts...)
}

type otelGauge struct {
	g    metric.Float64Gauge
	opts []metric.RecordOption
}

func (o otelGauge) Set(v float64) {
	o.g.Record(context.Background(), v, o.opts...)
}
