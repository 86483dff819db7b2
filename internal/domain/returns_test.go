package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func TestReturnStatusValid(t *testing.T) {
	for _, s := range []domain.ReturnStatus{
		domain.ReturnStatusPending,
		domain.ReturnStatusApproved,
		domain.ReturnStatusRejected,
	} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if domain.ReturnStatus("cancelled").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestReturnStatusTerminal(t *testing.T) {
	if domain.ReturnStatusPending.Terminal() {
		t.Fatal("pending is not terminal")
	}
	if !domain.ReturnStatusApproved.Terminal() || !domain.ReturnStatusRejected.Terminal() {
		t.Fatal("approved and rejected are terminal")
	}
}

func TestReturnRequestValidate(t *testing.T) {
	ok := domain.ReturnRequest{
		SaleID:      1,
		UserID:      42,
		RMANumber:   "RMA-abc123",
		Reason:      "damaged",
		Status:      domain.ReturnStatusPending,
		RequestedAt: time.Now().UTC(),
	}
	if errs := ok.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	cases := []struct {
		name string
		mut  func(r *domain.ReturnRequest)
	}{
		{name: "no sale", mut: func(r *domain.ReturnRequest) { r.SaleID = 0 }},
		{name: "no user", mut: func(r *domain.ReturnRequest) { r.UserID = 0 }},
		{name: "bad status", mut: func(r *domain.ReturnRequest) { r.Status = "cancelled" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := ok
			tc.mut(&req)
			if len(req.Validate()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}
