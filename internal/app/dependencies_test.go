package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/cart"
	"github.com/vladislavdragonenkov/retail/internal/service/checkout"
)

func TestNewDependencies(t *testing.T) {
	logger := log.WithField("test", "dependencies")

	deps, err := newDependencies(context.Background(), DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("newDependencies failed: %v", err)
	}
	defer deps.Close()

	if deps.Store == nil {
		t.Error("Store should not be nil")
	}
	if deps.Gateway == nil {
		t.Error("Gateway should not be nil")
	}
	if deps.Saga == nil {
		t.Error("Saga should not be nil")
	}
	if deps.Returns == nil {
		t.Error("Returns should not be nil")
	}
	if deps.Metrics == nil {
		t.Error("Metrics should not be nil")
	}
	if deps.Inventory == nil {
		t.Error("Inventory should not be nil")
	}
	if deps.Shipping == nil {
		t.Error("Shipping should not be nil")
	}
	if deps.Reseller == nil {
		t.Error("Reseller should not be nil")
	}
	if deps.Logger == nil {
		t.Error("Logger should not be nil")
	}
	if deps.Producer != nil {
		t.Error("Producer should be nil when KafkaBrokers is empty")
	}
}

func TestNewDependencies_WithNilLogger(t *testing.T) {
	deps, err := newDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("newDependencies failed: %v", err)
	}
	defer deps.Close()

	if deps.Logger == nil {
		t.Error("Logger should be initialized even when nil is passed")
	}
}

func TestNewDependencies_CheckoutRoundTrip(t *testing.T) {
	logger := log.WithField("test", "dependencies-checkout")

	deps, err := newDependencies(context.Background(), DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("newDependencies failed: %v", err)
	}
	defer deps.Close()

	product := newTestProduct()
	id, err := deps.Store.Catalog().Add(product)
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	product.ID = id

	crt := cart.New()
	if err := crt.Add(product, 2, time.Now()); err != nil {
		t.Fatalf("cart add failed: %v", err)
	}

	res := deps.Saga.Checkout(context.Background(), checkout.Request{
		UserID: 42,
		Method: "Card",
	}, crt)

	if !res.OK {
		t.Fatalf("checkout via wired dependencies failed: %s (%s)", res.Code, res.Reason)
	}
	if res.SaleID == 0 {
		t.Error("committed checkout must produce a sale id")
	}

	left, err := deps.Store.Catalog().GetByID(id)
	if err != nil {
		t.Fatalf("re-read product: %v", err)
	}
	if left.Stock != product.Stock-2 {
		t.Errorf("expected stock %d, got %d", product.Stock-2, left.Stock)
	}
}

func TestNewDependencies_IndependentInstances(t *testing.T) {
	deps1, err := newDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("newDependencies failed: %v", err)
	}
	defer deps1.Close()

	deps2, err := newDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("newDependencies failed: %v", err)
	}
	defer deps2.Close()

	if deps1 == deps2 {
		t.Error("newDependencies should create independent instances")
	}
	if deps1.Store == deps2.Store {
		t.Error("store instances should be independent")
	}
	if deps1.Gateway == deps2.Gateway {
		t.Error("gateway instances should be independent")
	}
}
