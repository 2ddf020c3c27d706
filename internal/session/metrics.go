package session

import (
	"gridflow/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridflow_sessions_active",
		Help: "Number of live catalog sessions",
	})

	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridflow_sessions_created_total",
		Help: "Total number of catalog sessions created",
	})

	sessionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridflow_sessions_closed_total",
		Help: "Total number of catalog sessions closed by delete, expiry or capacity eviction",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridflow_uploads_total",
		Help: "Upload tasks by result",
	}, []string{"result"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridflow_notifications_total",
		Help: "Status notifications shown, by kind",
	}, []string{"kind"})

	copiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridflow_clipboard_copies_total",
		Help: "Clipboard copy attempts by result",
	}, []string{"result"})
)

// Observer 把会话事件写入 Prometheus 指标。
type Observer struct{}

var _ service.Observer = Observer{}

func (Observer) Notified(n service.Notification) {
	notificationsTotal.WithLabelValues(string(n.Kind)).Inc()
}

func (Observer) UploadFinished(err error) {
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		return
	}
	uploadsTotal.WithLabelValues("committed").Inc()
}

func (Observer) Copied(ok bool) {
	if ok {
		copiesTotal.WithLabelValues("ok").Inc()
		return
	}
	copiesTotal.WithLabelValues("blocked").Inc()
}
