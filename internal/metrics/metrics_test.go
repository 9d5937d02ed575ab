package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IdentitySubmitted()
	m.IdentityDecided("approved")
	m.CampaignCreated()
	m.Contributed(600)
	m.Contributed(500)
	m.Withdrawal("succeeded")

	require.Equal(t, 1.0, testutil.ToFloat64(m.IdentitySubmissions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.IdentityDecisions.WithLabelValues("approved")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Contributions))
	require.Equal(t, 1100.0, testutil.ToFloat64(m.ContributedUnits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Withdrawals.WithLabelValues("succeeded")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IdentitySubmitted()
	m.Contributed(10)
	m.Withdrawal("failed")
	m.Request("GET", "200")
}
