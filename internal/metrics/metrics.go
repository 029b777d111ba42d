// Package metrics содержит метрики Prometheus для обращений к API оплат.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics собирает счётчики и гистограммы вызовов внешнего API и подтверждений оплат.
type Metrics struct {
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	verifications    *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg. При nil используется регистратор по умолчанию.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emind",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total requests to the payments API",
		}, []string{"operation", "role", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "emind",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests to the payments API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emind",
			Name:      "verifications_total",
			Help:      "Payment verifications forwarded to the payments API",
		}, []string{"role", "verified", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamDuration, m.verifications)
	return m
}

// ObserveUpstream учитывает один вызов API. statusCode 0 означает сетевую ошибку.
func (m *Metrics) ObserveUpstream(operation, role string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if statusCode > 0 {
		label = strconv.Itoa(statusCode)
	}
	m.upstreamTotal.WithLabelValues(operation, role, label).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveVerification учитывает результат подтверждения оплаты.
func (m *Metrics) ObserveVerification(role string, verified, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.verifications.WithLabelValues(role, strconv.FormatBool(verified), outcome).Inc()
}
