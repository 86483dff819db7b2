package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/cart"
	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/checkout"
	"github.com/vladislavdragonenkov/retail/internal/service/external"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

// Стресс-прогон checkout-саги: конкурентные покупатели соревнуются за
// ограниченный сток, по итогам проверяется отсутствие oversell.

const (
	defaultPriceMinor = int64(4999)
	defaultQty        = int32(1)
)

type config struct {
	total           int
	concurrency     int
	stock           int32
	qty             int32
	method          string
	cardSuccessRate float64
	outputPath      string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt         time.Time        `json:"started_at"`
	DurationSeconds   float64          `json:"duration_seconds"`
	TotalCheckouts    int64            `json:"total_checkouts"`
	Committed         int64            `json:"committed"`
	Failed            int64            `json:"failed"`
	ErrorRate         float64          `json:"error_rate"`
	RPS               float64          `json:"rps"`
	Codes             map[string]int64 `json:"codes"`
	CheckoutLatencyMs latencySummary   `json:"checkout_latency_ms"`
	InitialStock      int32            `json:"initial_stock"`
	RemainingStock    int32            `json:"remaining_stock"`
	UnitsSold         int64            `json:"units_sold"`
	Oversold          bool             `json:"oversold"`
}

type collector struct {
	mu        sync.Mutex
	total     int64
	committed int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{codes: make(map[string]int64)}
}

func (c *collector) record(res checkout.Result, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if res.OK {
		c.committed++
		c.codes["committed"]++
	} else {
		c.failed++
		c.codes[string(res.Code)]++
	}
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration, cfg config, remaining int32) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	codesCopy := make(map[string]int64, len(c.codes))
	for code, count := range c.codes {
		codesCopy[code] = count
	}

	unitsSold := c.committed * int64(cfg.qty)
	return report{
		StartedAt:         startedAt.UTC(),
		DurationSeconds:   duration.Seconds(),
		TotalCheckouts:    c.total,
		Committed:         c.committed,
		Failed:            c.failed,
		ErrorRate:         ratio(c.failed, c.total),
		RPS:               rps(c.total, duration),
		Codes:             codesCopy,
		CheckoutLatencyMs: buildLatencySummary(c.latencies),
		InitialStock:      cfg.stock,
		RemainingStock:    remaining,
		UnitsSold:         unitsSold,
		Oversold:          remaining < 0 || unitsSold > int64(cfg.stock),
	}
}

func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func rps(total int64, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(total) / duration.Seconds()
}

func buildLatencySummary(latencies []float64) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// runLoadTest прогоняет cfg.total конкурентных checkout против одного товара.
func runLoadTest(ctx context.Context, cfg config, logger *log.Entry) (report, error) {
	store := memory.NewStore()
	productID, err := store.Catalog().Add(domain.Product{
		Name:       "loadtest-item",
		PriceMinor: defaultPriceMinor,
		Stock:      cfg.stock,
	})
	if err != nil {
		return report{}, fmt.Errorf("seed product: %w", err)
	}

	gatewayCfg := payment.DefaultConfig()
	gatewayCfg.BackoffBase = time.Millisecond
	gatewayCfg.BackoffMax = 5 * time.Millisecond

	gateway := payment.NewGateway(gatewayCfg, nil, nil, logger)
	gateway.Register("cash", payment.NewCashStrategy())
	gateway.Register("crypto", payment.NewCryptoStrategy())
	if cfg.cardSuccessRate > 0 && cfg.cardSuccessRate < 1 {
		gateway.Register("card", payment.NewCardStrategy(payment.SuccessRate(cfg.cardSuccessRate, nil)))
	} else {
		gateway.Register("card", payment.NewCardStrategy(nil))
	}

	saga := checkout.NewSaga(
		store,
		gateway,
		external.NewInventoryService(logger),
		external.NewShippingService(logger),
		nil,
		nil,
		nil,
		time.Second,
		logger,
	)

	stats := newCollector()
	jobs := make(chan int64)
	var wg sync.WaitGroup

	startedAt := time.Now()
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				crt := cart.New()
				if err := crt.Add(domain.Product{
					ID:         productID,
					Name:       "loadtest-item",
					PriceMinor: defaultPriceMinor,
					Stock:      cfg.stock,
				}, cfg.qty, time.Now()); err != nil {
					stats.record(checkout.Result{Code: domain.ClassifyFailure(err), Reason: err.Error()}, 0)
					continue
				}

				begin := time.Now()
				res := saga.Checkout(ctx, checkout.Request{
					UserID: userID,
					Method: cfg.method,
				}, crt)
				stats.record(res, time.Since(begin))
			}
		}()
	}

	for i := 0; i < cfg.total; i++ {
		select {
		case <-ctx.Done():
			i = cfg.total
		case jobs <- int64(i + 1):
		}
	}
	close(jobs)
	wg.Wait()

	product, err := store.Catalog().GetByID(productID)
	if err != nil {
		return report{}, fmt.Errorf("re-read product: %w", err)
	}

	return stats.buildReport(startedAt, time.Since(startedAt), cfg, product.Stock), nil
}

func writeReport(r report, outputPath string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if outputPath == "" {
		fmt.Println(string(data))
		return nil
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func main() {
	var cfg config
	var stock, qty int

	flag.IntVar(&cfg.total, "total", 1000, "total checkouts to run")
	flag.IntVar(&cfg.concurrency, "concurrency", 16, "number of concurrent buyers")
	flag.IntVar(&stock, "stock", 500, "initial product stock")
	flag.IntVar(&qty, "qty", 1, "quantity per checkout")
	flag.StringVar(&cfg.method, "method", "card", "payment method: cash|card|crypto|<custom>")
	flag.Float64Var(&cfg.cardSuccessRate, "card-success-rate", 1, "card approval probability; >=1 is deterministic")
	flag.StringVar(&cfg.outputPath, "output", "", "path to write the JSON report (stdout if empty)")
	flag.Parse()

	cfg.stock = int32(stock)
	cfg.qty = int32(qty)

	if cfg.total <= 0 || cfg.concurrency <= 0 || cfg.qty <= 0 || cfg.stock < 0 {
		fmt.Fprintln(os.Stderr, "total, concurrency and qty must be > 0, stock must be >= 0")
		os.Exit(1)
	}

	baseLogger := log.New()
	baseLogger.SetLevel(log.ErrorLevel)
	logger := baseLogger.WithField("component", "loadtest")

	result, err := runLoadTest(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadtest failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeReport(result, cfg.outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if result.Oversold {
		fmt.Fprintln(os.Stderr, "OVERSELL DETECTED: committed checkouts exceed initial stock")
		os.Exit(1)
	}
}
