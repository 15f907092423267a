package stampede_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veartutop/stampede"
)

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	vals := map[string]float64{}

	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				vals[mf.GetName()] += m.GetCounter().GetValue()
			}

			if m.GetGauge() != nil {
				vals[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	return vals
}

func TestPrometheusStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := stampede.NewPrometheusStats(reg)
	ctx := context.Background()

	tr.Add(ctx, stampede.MetricHit, 1, "name", "alerts")
	tr.Add(ctx, stampede.MetricHit, 2, "name", "alerts")
	tr.Set(ctx, stampede.MetricItems, 5, "name", "alerts")

	vals := gatherValues(t, reg)
	assert.Equal(t, float64(3), vals[stampede.MetricHit])
	assert.Equal(t, float64(5), vals[stampede.MetricItems])
}

func TestPrometheusStats_coordinator(t *testing.T) {
	store := stampede.NewMemory()
	defer store.Close()

	reg := prometheus.NewRegistry()

	cfg := baseConfig(store)
	cfg.Stats = stampede.NewPrometheusStats(reg)

	c, err := stampede.New(cfg, func(ctx context.Context) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = c.Read(ctx)
	require.NoError(t, err)

	_, err = c.Read(ctx)
	require.NoError(t, err)

	vals := gatherValues(t, reg)
	assert.Equal(t, float64(1), vals[stampede.MetricMiss])
	assert.Equal(t, float64(1), vals[stampede.MetricBuild])
	assert.Equal(t, float64(1), vals[stampede.MetricWrite])
	assert.Equal(t, float64(1), vals[stampede.MetricHit])
}
