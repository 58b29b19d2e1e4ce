// Package metrics holds the Prometheus counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service counters.
type Metrics struct {
	CheckIns *prometheus.CounterVec
	QRIssued prometheus.Counter
	Cleared  prometheus.Counter
	Exports  prometheus.Counter
	Logins   *prometheus.CounterVec
	Backups  *prometheus.CounterVec
}

// New registers the counters on reg. Pass prometheus.DefaultRegisterer in main
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CheckIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrattend_checkins_total",
			Help: "Check-in attempts by outcome.",
		}, []string{"result"}),
		QRIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "qrattend_qr_issued_total",
			Help: "QR codes generated.",
		}),
		Cleared: f.NewCounter(prometheus.CounterOpts{
			Name: "qrattend_records_cleared_total",
			Help: "Attendance records removed by bulk clear.",
		}),
		Exports: f.NewCounter(prometheus.CounterOpts{
			Name: "qrattend_exports_total",
			Help: "CSV exports served.",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrattend_logins_total",
			Help: "Login attempts by role and outcome.",
		}, []string{"role", "result"}),
		Backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrattend_backups_archived_total",
			Help: "Backup jobs handled by the archiver by outcome.",
		}, []string{"result"}),
	}
}
