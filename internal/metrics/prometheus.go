package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	SignUpsTotal          *prometheus.CounterVec
	SignInsTotal          *prometheus.CounterVec
	SubOrgsCreatedTotal   *prometheus.CounterVec
	CustodyRequestsTotal  *prometheus.CounterVec
	CustodyRequestSeconds *prometheus.HistogramVec
	RPCRequestsTotal      *prometheus.CounterVec
	RPCRequestSeconds     *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with registerer.
func NewPrometheus(registerer prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		SignUpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyport_signups_total",
				Help: "Total number of sign-up attempts",
			},
			[]string{"status"},
		),
		SignInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyport_signins_total",
				Help: "Total number of sign-in attempts",
			},
			[]string{"status"},
		),
		SubOrgsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyport_suborgs_created_total",
				Help: "Total number of sub-organization creation activities",
			},
			[]string{"status"},
		),
		CustodyRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyport_custody_requests_total",
				Help: "Total number of custody API requests",
			},
			[]string{"path", "status"},
		),
		CustodyRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyport_custody_request_duration_seconds",
				Help:    "Custody API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyport_rpc_requests_total",
				Help: "Total number of wallet provider requests",
			},
			[]string{"method", "status"},
		),
		RPCRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyport_rpc_request_duration_seconds",
				Help:    "Wallet provider request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			r.SignUpsTotal,
			r.SignInsTotal,
			r.SubOrgsCreatedTotal,
			r.CustodyRequestsTotal,
			r.CustodyRequestSeconds,
			r.RPCRequestsTotal,
			r.RPCRequestSeconds,
		)
	}

	return r
}

// IncSignUp counts a sign-up attempt.
func (r *PrometheusRecorder) IncSignUp(status string) {
	r.SignUpsTotal.WithLabelValues(status).Inc()
}

// IncSignIn counts a sign-in attempt.
func (r *PrometheusRecorder) IncSignIn(status string) {
	r.SignInsTotal.WithLabelValues(status).Inc()
}

// IncSubOrgCreated counts a sub-organization activity.
func (r *PrometheusRecorder) IncSubOrgCreated(status string) {
	r.SubOrgsCreatedTotal.WithLabelValues(status).Inc()
}

// ObserveCustodyRequest records one custody API round trip.
func (r *PrometheusRecorder) ObserveCustodyRequest(path, status string, duration time.Duration) {
	r.CustodyRequestsTotal.WithLabelValues(path, status).Inc()
	r.CustodyRequestSeconds.WithLabelValues(path).Observe(duration.Seconds())
}

// IncRPCRequest counts a wallet provider request.
func (r *PrometheusRecorder) IncRPCRequest(method, status string) {
	r.RPCRequestsTotal.WithLabelValues(method, status).Inc()
}

// ObserveRPCDuration records a wallet provider request duration.
func (r *PrometheusRecorder) ObserveRPCDuration(method string, duration time.Duration) {
	r.RPCRequestSeconds.WithLabelValues(method).Observe(duration.Seconds())
}
