package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/memory"
)

func TestRegistryOutcomesAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	r, err := portfolio.NewRegistry(memory.New(nil), portfolio.WithObserver(m))
	require.NoError(t, err)

	ctx := context.Background()
	doc, err := r.Load(ctx, "drawings")
	require.NoError(t, err)
	_, err = r.Commit(ctx, "drawings", doc)
	require.NoError(t, err)
	_, err = r.Commit(ctx, "drawings", doc)
	require.ErrorIs(t, err, portfolio.ErrConflict)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("drawings", portfolio.OutcomeAbsent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("drawings", portfolio.OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commits.WithLabelValues("drawings", portfolio.OutcomeConflict)))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveRequest("GET", "/api/v1/collections", 200, 20*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.requests))
	expected := `
# HELP portfolio_registry_loads_total Registry document loads by collection and outcome.
# TYPE portfolio_registry_loads_total counter
portfolio_registry_loads_total{collection="cv",outcome="loaded"} 1
`
	m.ObserveLoad("cv", portfolio.OutcomeLoaded)
	assert.NoError(t, testutil.CollectAndCompare(m.loads, strings.NewReader(expected)))
}
