package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesIsolatedRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.GraphNodes.Set(7)
	a.CyclesTotal.WithLabelValues("completed").Inc()

	assert.Equal(t, 7.0, testutil.ToFloat64(a.GraphNodes))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.GraphNodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.CyclesTotal.WithLabelValues("completed")))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestLabelledSeriesAreGathered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PrunedTotal.WithLabelValues("cluster_overflow").Add(3)
	m.PrunedTotal.WithLabelValues("low_value").Inc()
	m.CoveragePercent.WithLabelValues("states").Set(42.5)

	n, err := testutil.GatherAndCount(reg, "graph_pruned_nodes_total", "coverage_percentage")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PrunedTotal.WithLabelValues("cluster_overflow")))
}
