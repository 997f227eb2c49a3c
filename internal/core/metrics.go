package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 扫描过程的Prometheus指标,注册在独立的Registry上
// nil值可安全调用所有方法
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	TargetsTotal    *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	ErrorsTotal     *prometheus.CounterVec
	VendorHitsTotal *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seoscan_attempts_total",
			Help: "Total page processing attempts by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seoscan_retries_total",
			Help: "Total number of retries scheduled after a failed attempt.",
		},
	)
	targets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seoscan_targets_total",
			Help: "Total targets finished by result.",
		},
		[]string{"result"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seoscan_attempt_duration_seconds",
			Help:    "Duration of a single navigation and extraction attempt.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90, 180},
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seoscan_errors_total",
			Help: "Total attempt errors by type.",
		},
		[]string{"error_type"},
	)
	vendorHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seoscan_vendor_hits_total",
			Help: "Pages on which a tracking vendor was detected.",
		},
		[]string{"vendor"},
	)

	registry.MustRegister(attempts, retries, targets, duration, errorsTotal, vendorHits)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		RetriesTotal:    retries,
		TargetsTotal:    targets,
		AttemptDuration: duration,
		ErrorsTotal:     errorsTotal,
		VendorHitsTotal: vendorHits,
	}
}

// ObserveAttempt 记录一次尝试
func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

// IncRetries 重试计数
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError 按错误类型计数
func (m *Metrics) IncError(err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorTypeLabel(err)).Inc()
}

// IncTarget 目标完成计数
func (m *Metrics) IncTarget(result string) {
	if m == nil {
		return
	}
	m.TargetsTotal.WithLabelValues(result).Inc()
}

// IncVendors 厂商命中计数
func (m *Metrics) IncVendors(vendors []string) {
	if m == nil {
		return
	}
	for _, vendor := range vendors {
		m.VendorHitsTotal.WithLabelValues(vendor).Inc()
	}
}
