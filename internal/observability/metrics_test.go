package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordRefresh(t *testing.T) {
	before := testutil.ToFloat64(refreshCounter.WithLabelValues(OutcomeFailure))
	beforeSamples := histogramSampleCount(t)

	RecordRefresh(OutcomeFailure, 20*time.Millisecond)

	require.InDelta(t, before+1, testutil.ToFloat64(refreshCounter.WithLabelValues(OutcomeFailure)), 0.0001)
	require.Equal(t, beforeSamples+1, histogramSampleCount(t))
}

func TestRecordProfileRefreshedIgnoresZero(t *testing.T) {
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	RecordProfileRefreshed(ts)
	RecordProfileRefreshed(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(profileRefreshedGauge))
}

func TestRecordDashboardBuilt(t *testing.T) {
	before := testutil.ToFloat64(dashboardCounter.WithLabelValues("global"))
	RecordDashboardBuilt(true)
	require.InDelta(t, before+1, testutil.ToFloat64(dashboardCounter.WithLabelValues("global")), 0.0001)
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, refreshDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
