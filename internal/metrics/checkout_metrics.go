package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики checkout-саги и workflow возвратов.
type CheckoutMetrics struct {
	// Счётчики исходов
	checkoutTotal   *prometheus.CounterVec
	checkoutErrors  *prometheus.CounterVec
	paymentFailures prometheus.Counter
	refundsIssued   *prometheus.CounterVec
	returnRequests  prometheus.Counter
	returnsTotal    *prometheus.CounterVec

	// Гистограммы времени выполнения
	checkoutDuration *prometheus.HistogramVec
	returnDuration   prometheus.Histogram

	// Gauge состояния circuit breaker: 1 — открыт, 0 — закрыт.
	circuitBreakerOpen prometheus.Gauge

	// Gauge активных checkout
	activeCheckouts prometheus.Gauge
}

// NewCheckoutMetrics создаёт метрики на дефолтном registerer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "retail_checkout_total",
			Help: "Total number of checkout attempts by outcome",
		}, []string{"outcome"}),
		checkoutErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "retail_checkout_errors_total",
			Help: "Total number of failed checkouts by failure code",
		}, []string{"type"}),
		paymentFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_payment_failures_total",
			Help: "Total number of failed payment authorization attempts",
		}),
		refundsIssued: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "retail_refunds_issued_total",
			Help: "Total number of refunds issued (compensations and returns) by payment method",
		}, []string{"payment_method"}),
		returnRequests: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_return_requests_total",
			Help: "Total number of return requests opened",
		}),
		returnsTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "retail_returns_total",
			Help: "Total number of return requests by resolution",
		}, []string{"resolution"}),
		checkoutDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "retail_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"payment_method"}),
		returnDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "retail_return_resolution_duration_seconds",
			Help:    "Duration of return request resolution in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		circuitBreakerOpen: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "retail_circuit_breaker_open",
			Help: "Whether the payment circuit breaker is open (1) or closed (0)",
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "retail_active_checkouts",
			Help: "Number of checkout operations currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutOutcome учитывает завершённый checkout с его исходом.
func (m *CheckoutMetrics) RecordCheckoutOutcome(outcome string) {
	m.checkoutTotal.WithLabelValues(outcome).Inc()
}

// RecordCheckoutError учитывает провал checkout по коду причины.
func (m *CheckoutMetrics) RecordCheckoutError(code string) {
	m.checkoutErrors.WithLabelValues(code).Inc()
}

// RecordPaymentFailure учитывает неудачную попытку авторизации платежа.
func (m *CheckoutMetrics) RecordPaymentFailure() {
	m.paymentFailures.Inc()
}

// RecordRefundIssued учитывает выполненный возврат средств по методу оплаты.
func (m *CheckoutMetrics) RecordRefundIssued(method string) {
	m.refundsIssued.WithLabelValues(method).Inc()
}

// RecordReturnRequested учитывает открытую заявку на возврат.
func (m *CheckoutMetrics) RecordReturnRequested() {
	m.returnRequests.Inc()
}

// RecordReturnResolution учитывает разрешённую заявку на возврат.
func (m *CheckoutMetrics) RecordReturnResolution(resolution string) {
	m.returnsTotal.WithLabelValues(resolution).Inc()
}

// RecordCheckoutDuration записывает длительность checkout по методу оплаты.
func (m *CheckoutMetrics) RecordCheckoutDuration(method string, duration time.Duration) {
	m.checkoutDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordReturnDuration записывает длительность разрешения заявки.
func (m *CheckoutMetrics) RecordReturnDuration(duration time.Duration) {
	m.returnDuration.Observe(duration.Seconds())
}

// SetCircuitBreakerOpen выставляет gauge состояния circuit breaker.
func (m *CheckoutMetrics) SetCircuitBreakerOpen(open bool) {
	if open {
		m.circuitBreakerOpen.Set(1)
		return
	}
	m.circuitBreakerOpen.Set(0)
}

// CheckoutStarted увеличивает число активных checkout.
func (m *CheckoutMetrics) CheckoutStarted() {
	m.activeCheckouts.Inc()
}

// CheckoutFinished уменьшает число активных checkout.
func (m *CheckoutMetrics) CheckoutFinished() {
	m.activeCheckouts.Dec()
}
