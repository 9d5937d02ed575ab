package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for identity and escrow activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IdentitySubmissions prometheus.Counter
	IdentityDecisions   *prometheus.CounterVec
	CampaignsCreated    prometheus.Counter
	Contributions       prometheus.Counter
	ContributedUnits    prometheus.Counter
	Withdrawals         *prometheus.CounterVec
	Requests            *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IdentitySubmissions: f.NewCounter(prometheus.CounterOpts{
			Name: "escrow_identity_submissions_total",
			Help: "Identity records submitted or resubmitted for review",
		}),
		IdentityDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_identity_decisions_total",
			Help: "Administrator decisions on identity records",
		}, []string{"decision"}),
		CampaignsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "escrow_campaigns_created_total",
			Help: "Campaigns created",
		}),
		Contributions: f.NewCounter(prometheus.CounterOpts{
			Name: "escrow_contributions_total",
			Help: "Accepted contributions",
		}),
		ContributedUnits: f.NewCounter(prometheus.CounterOpts{
			Name: "escrow_contributed_units_total",
			Help: "Sum of accepted contributions in smallest currency units",
		}),
		Withdrawals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_withdrawals_total",
			Help: "Withdrawal attempts by outcome",
		}, []string{"outcome"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_http_requests_total",
			Help: "HTTP requests by method and status",
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) IdentitySubmitted() {
	if m == nil {
		return
	}
	m.IdentitySubmissions.Inc()
}

func (m *Metrics) IdentityDecided(decision string) {
	if m == nil {
		return
	}
	m.IdentityDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) CampaignCreated() {
	if m == nil {
		return
	}
	m.CampaignsCreated.Inc()
}

func (m *Metrics) Contributed(amount int64) {
	if m == nil {
		return
	}
	m.Contributions.Inc()
	m.ContributedUnits.Add(float64(amount))
}

func (m *Metrics) Withdrawal(outcome string) {
	if m == nil {
		return
	}
	m.Withdrawals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Request(method, status string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, status).Inc()
}
