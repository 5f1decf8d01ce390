package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

// Registry wraps a prometheus registry that carries the host's runtime
// collectors plus a set of static labels appended to every gathered metric.
type Registry struct {
	*prometheus.Registry
	labels map[string]string
}

// NewRegistry returns a registry with the Go and process collectors
// pre-registered.
func NewRegistry(labels map[string]string) *Registry {
	registry := &Registry{
		Registry: prometheus.NewRegistry(),
		labels:   labels,
	}
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Custom gather method that adds the static labels to all metrics. This is
// useful for distinguishing the metrics from other golang services that also
// expose the default go collector metrics.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	families, err := r.Registry.Gather()
	if err != nil {
		return nil, err
	}
	for name, value := range r.labels {
		for _, family := range families {
			for _, metric := range family.Metric {
				metric.Label = append(metric.Label, &dto.LabelPair{
					Name:  &name,
					Value: &value,
				})
			}
		}
	}
	return families, nil
}
