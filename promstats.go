package stampede

import (
	"context"
	"sync"

	"github.com/bool64/stats"
	"github.com/prometheus/client_golang/prometheus"
)

var _ stats.Tracker = &PrometheusStats{}

// PrometheusStats exposes stats.Tracker metrics through a prometheus registry.
//
// Add calls map to counters and Set calls to gauges, one collector per metric
// name. Label names are fixed by the first observation of a metric, further
// observations must carry the same label set.
type PrometheusStats struct {
	reg prometheus.Registerer

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewPrometheusStats creates a tracker registering its collectors with reg.
func NewPrometheusStats(reg prometheus.Registerer) *PrometheusStats {
	return &PrometheusStats{
		reg:      reg,
		counters: map[string]*prometheus.CounterVec{},
		gauges:   map[string]*prometheus.GaugeVec{},
	}
}

// Add collects an increment of a counter.
func (t *PrometheusStats) Add(_ context.Context, name string, increment float64, labelsAndValues ...string) {
	names, values := splitLabels(labelsAndValues)

	t.mu.Lock()
	cv, found := t.counters[name]
	if !found {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, names)
		t.reg.MustRegister(cv)
		t.counters[name] = cv
	}
	t.mu.Unlock()

	cv.WithLabelValues(values...).Add(increment)
}

// Set collects an absolute value of a gauge.
func (t *PrometheusStats) Set(_ context.Context, name string, absolute float64, labelsAndValues ...string) {
	names, values := splitLabels(labelsAndValues)

	t.mu.Lock()
	gv, found := t.gauges[name]
	if !found {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, names)
		t.reg.MustRegister(gv)
		t.gauges[name] = gv
	}
	t.mu.Unlock()

	gv.WithLabelValues(values...).Set(absolute)
}

func splitLabels(labelsAndValues []string) (names, values []string) {
	for i := 0; i+1 < len(labelsAndValues); i += 2 {
		names = append(names, labelsAndValues[i])
		values = append(values, labelsAndValues[i+1])
	}

	return names, values
}
