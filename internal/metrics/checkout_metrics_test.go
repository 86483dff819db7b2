package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCheckoutMetrics(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newCheckoutMetricsWithRegisterer should not return nil")
	}

	if metrics.checkoutTotal == nil {
		t.Error("checkoutTotal counter vec should not be nil")
	}
	if metrics.checkoutErrors == nil {
		t.Error("checkoutErrors counter vec should not be nil")
	}
	if metrics.paymentFailures == nil {
		t.Error("paymentFailures counter should not be nil")
	}
	if metrics.refundsIssued == nil {
		t.Error("refundsIssued counter vec should not be nil")
	}
	if metrics.returnRequests == nil {
		t.Error("returnRequests counter should not be nil")
	}
	if metrics.returnsTotal == nil {
		t.Error("returnsTotal counter vec should not be nil")
	}
	if metrics.checkoutDuration == nil {
		t.Error("checkoutDuration histogram vec should not be nil")
	}
	if metrics.returnDuration == nil {
		t.Error("returnDuration histogram should not be nil")
	}
	if metrics.circuitBreakerOpen == nil {
		t.Error("circuitBreakerOpen gauge should not be nil")
	}
	if metrics.activeCheckouts == nil {
		t.Error("activeCheckouts gauge should not be nil")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newCheckoutMetricsWithRegisterer(reg)
	second := newCheckoutMetricsWithRegisterer(reg)

	// Повторная регистрация возвращает уже существующие коллекторы.
	if first.paymentFailures != second.paymentFailures {
		t.Error("expected the same counter instance on re-registration")
	}
	if first.circuitBreakerOpen != second.circuitBreakerOpen {
		t.Error("expected the same gauge instance on re-registration")
	}
}

func TestRecordCheckoutOutcome(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCheckoutOutcome("committed")
	m.RecordCheckoutOutcome("committed")
	m.RecordCheckoutOutcome("failed")

	metric := &dto.Metric{}
	counter, err := m.checkoutTotal.GetMetricWithLabelValues("committed")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCheckoutError(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCheckoutError("insufficient_stock")
	m.RecordCheckoutError("insufficient_stock")
	m.RecordCheckoutError("payment_declined")

	metric := &dto.Metric{}
	counter, err := m.checkoutErrors.GetMetricWithLabelValues("insufficient_stock")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCheckoutDuration(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCheckoutDuration("card", 100*time.Millisecond)
	m.RecordCheckoutDuration("card", 500*time.Millisecond)
	m.RecordCheckoutDuration("crypto", time.Second)

	observer, err := m.checkoutDuration.GetMetricWithLabelValues("card")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}

	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples for card, got %d", metric.Histogram.GetSampleCount())
	}

	sum := metric.Histogram.GetSampleSum()
	if sum < 0.55 || sum > 0.65 {
		t.Errorf("expected sum around 0.6, got %f", sum)
	}
}

func TestSetCircuitBreakerOpen(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.SetCircuitBreakerOpen(true)

	metric := &dto.Metric{}
	if err := m.circuitBreakerOpen.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if metric.Gauge.GetValue() != 1.0 {
		t.Errorf("expected gauge 1.0, got %f", metric.Gauge.GetValue())
	}

	m.SetCircuitBreakerOpen(false)
	metric = &dto.Metric{}
	if err := m.circuitBreakerOpen.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if metric.Gauge.GetValue() != 0.0 {
		t.Errorf("expected gauge 0.0, got %f", metric.Gauge.GetValue())
	}
}

func TestCheckoutLifecycle(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.CheckoutStarted()
	m.CheckoutStarted()
	m.CheckoutFinished()

	metric := &dto.Metric{}
	if err := m.activeCheckouts.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if metric.Gauge.GetValue() != 1.0 {
		t.Errorf("expected 1 active checkout, got %f", metric.Gauge.GetValue())
	}
}

func TestRecordReturnResolution(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordReturnResolution("approved")
	m.RecordReturnResolution("rejected")
	m.RecordReturnResolution("approved")
	m.RecordReturnDuration(50 * time.Millisecond)

	counter, err := m.returnsTotal.GetMetricWithLabelValues("approved")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordRefundIssued(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordRefundIssued("card")
	m.RecordRefundIssued("card")
	m.RecordRefundIssued("crypto")
	m.RecordPaymentFailure()
	m.RecordPaymentFailure()

	counter, err := m.refundsIssued.GetMetricWithLabelValues("card")
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 card refunds, got %f", metric.Counter.GetValue())
	}

	metric = &dto.Metric{}
	if err := m.paymentFailures.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 payment failures, got %f", metric.Counter.GetValue())
	}
}

func TestRecordReturnRequested(t *testing.T) {
	m := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordReturnRequested()
	m.RecordReturnRequested()

	metric := &dto.Metric{}
	if err := m.returnRequests.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 return requests, got %f", metric.Counter.GetValue())
	}
}
