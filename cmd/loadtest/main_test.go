package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/service/checkout"
)

func testLogger() *log.Entry {
	baseLogger := log.New()
	baseLogger.SetLevel(log.ErrorLevel)
	return baseLogger.WithField("test", "loadtest")
}

func TestBuildLatencySummary_Empty(t *testing.T) {
	summary := buildLatencySummary(nil)
	if summary != (latencySummary{}) {
		t.Fatalf("expected zero summary for empty input, got %+v", summary)
	}
}

func TestBuildLatencySummary_Percentiles(t *testing.T) {
	latencies := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	summary := buildLatencySummary(latencies)

	if summary.Min != 1 {
		t.Errorf("unexpected min: %v", summary.Min)
	}
	if summary.Max != 10 {
		t.Errorf("unexpected max: %v", summary.Max)
	}
	if summary.Avg != 5.5 {
		t.Errorf("unexpected avg: %v", summary.Avg)
	}
	if summary.P50 != 5.5 {
		t.Errorf("unexpected p50: %v", summary.P50)
	}
	if summary.P99 < summary.P95 || summary.P95 < summary.P50 {
		t.Errorf("percentiles must be monotonic: %+v", summary)
	}
}

func TestCollector_Record(t *testing.T) {
	stats := newCollector()

	stats.record(checkout.Result{OK: true}, time.Millisecond)
	stats.record(checkout.Result{Code: "insufficient_stock"}, 2*time.Millisecond)

	r := stats.buildReport(time.Now(), time.Second, config{stock: 10, qty: 1}, 9)
	if r.TotalCheckouts != 2 {
		t.Fatalf("expected 2 checkouts, got %d", r.TotalCheckouts)
	}
	if r.Committed != 1 || r.Failed != 1 {
		t.Fatalf("unexpected outcome split: %+v", r)
	}
	if r.Codes["committed"] != 1 || r.Codes["insufficient_stock"] != 1 {
		t.Fatalf("unexpected codes: %+v", r.Codes)
	}
	if r.ErrorRate != 0.5 {
		t.Fatalf("unexpected error rate: %v", r.ErrorRate)
	}
	if r.Oversold {
		t.Fatal("report should not flag oversell")
	}
}

func TestRunLoadTest_NoOversell(t *testing.T) {
	cfg := config{
		total:           50,
		concurrency:     8,
		stock:           10,
		qty:             1,
		method:          "card",
		cardSuccessRate: 1,
	}

	result, err := runLoadTest(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("runLoadTest failed: %v", err)
	}

	if result.TotalCheckouts != int64(cfg.total) {
		t.Fatalf("expected %d checkouts, got %d", cfg.total, result.TotalCheckouts)
	}
	if result.Committed != int64(cfg.stock) {
		t.Fatalf("expected exactly %d committed checkouts, got %d", cfg.stock, result.Committed)
	}
	if result.RemainingStock != 0 {
		t.Fatalf("expected stock to be drained to 0, got %d", result.RemainingStock)
	}
	if result.Oversold {
		t.Fatal("oversell must never happen")
	}
}

func TestRunLoadTest_CashAlwaysFails(t *testing.T) {
	cfg := config{
		total:       10,
		concurrency: 4,
		stock:       100,
		qty:         1,
		method:      "cash",
	}

	result, err := runLoadTest(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("runLoadTest failed: %v", err)
	}

	if result.Committed != 0 {
		t.Fatalf("cash checkouts must never commit, got %d", result.Committed)
	}
	if result.RemainingStock != cfg.stock {
		t.Fatalf("stock must stay intact, got %d", result.RemainingStock)
	}
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "loadtest.json")

	if err := writeReport(report{TotalCheckouts: 1}, path); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("report file should not be empty")
	}
}
