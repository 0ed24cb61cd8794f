package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/estate-claims/internal/model"
)

func TestPhase(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	preview := base.Add(-24 * time.Hour)
	sale := &model.Sale{
		Status:       model.SaleActive,
		PreviewStart: &preview,
		ClaimStart:   base,
		ClaimEnd:     base.Add(48 * time.Hour),
		PickupStart:  base.Add(72 * time.Hour),
		PickupEnd:    base.Add(96 * time.Hour),
	}
	m := &SaleLifecycleManager{}

	tests := []struct {
		name string
		at   time.Time
		want model.SalePhase
	}{
		{"before preview", preview.Add(-time.Second), model.PhaseScheduled},
		{"preview", preview, model.PhasePreview},
		{"claim start inclusive", sale.ClaimStart, model.PhaseClaiming},
		{"mid claim", base.Add(time.Hour), model.PhaseClaiming},
		{"claim end inclusive", sale.ClaimEnd, model.PhaseClaiming},
		{"gap before pickup", sale.ClaimEnd.Add(time.Second), model.PhaseClosed},
		{"pickup start", sale.PickupStart, model.PhasePickup},
		{"pickup end", sale.PickupEnd, model.PhasePickup},
		{"after pickup", sale.PickupEnd.Add(time.Second), model.PhaseClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Phase(sale, tt.at); got != tt.want {
				t.Errorf("Phase = %s, want %s", got, tt.want)
			}
			if open := m.IsClaimingOpen(sale, tt.at); open != (tt.want == model.PhaseClaiming) {
				t.Errorf("IsClaimingOpen = %v for phase %s", open, tt.want)
			}
		})
	}

	noPreview := *sale
	noPreview.PreviewStart = nil
	if got := m.Phase(&noPreview, preview); got != model.PhaseScheduled {
		t.Errorf("without preview window: Phase = %s, want scheduled", got)
	}

	cancelled := *sale
	cancelled.Status = model.SaleCancelled
	if got := m.Phase(&cancelled, base.Add(time.Hour)); got != model.PhaseClosed {
		t.Errorf("cancelled: Phase = %s, want closed", got)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	f := newFixture(t)
	valid := NewSale{
		Title:       "Estate",
		ClaimStart:  f.now,
		ClaimEnd:    f.now.Add(time.Hour),
		PickupStart: f.now.Add(2 * time.Hour),
		PickupEnd:   f.now.Add(3 * time.Hour),
	}
	tests := []struct {
		name   string
		mutate func(*NewSale)
	}{
		{"no title", func(s *NewSale) { s.Title = "  " }},
		{"missing window", func(s *NewSale) { s.PickupEnd = time.Time{} }},
		{"claim reversed", func(s *NewSale) { s.ClaimEnd = s.ClaimStart }},
		{"pickup overlaps claim", func(s *NewSale) { s.PickupStart = s.ClaimEnd.Add(-time.Minute) }},
		{"pickup reversed", func(s *NewSale) { s.PickupEnd = s.PickupStart }},
		{"preview after claim start", func(s *NewSale) { p := s.ClaimStart; s.PreviewStart = &p }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := f.lifecycle.CreateSale(f.ctx, f.sellerID, in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	sale, err := f.lifecycle.CreateSale(f.ctx, f.sellerID, valid)
	if err != nil {
		t.Fatalf("valid sale: %v", err)
	}
	if len(sale.AccessCode) != accessCodeLength || strings.Trim(sale.AccessCode, codeAlphabet) != "" {
		t.Errorf("access code %q not drawn from the code alphabet", sale.AccessCode)
	}
	if sale.Status != model.SaleActive {
		t.Errorf("status = %s, want active", sale.Status)
	}
}

func TestAccessCodeCollisionRetries(t *testing.T) {
	f := newFixture(t)
	taken := f.sale.AccessCode
	codes := []string{taken, taken, "FRESH234"}
	calls := 0
	f.lifecycle.RandomCode = func(n int) (string, error) {
		c := codes[calls]
		calls++
		return c, nil
	}
	code, err := f.lifecycle.GenerateAccessCode(f.ctx)
	if err != nil {
		t.Fatalf("GenerateAccessCode: %v", err)
	}
	if code != "FRESH234" || calls != 3 {
		t.Errorf("code = %q after %d draws, want FRESH234 after 3", code, calls)
	}
}

func TestAccessCodeSpaceExhausted(t *testing.T) {
	f := newFixture(t)
	taken := f.sale.AccessCode
	f.lifecycle.RandomCode = func(int) (string, error) { return taken, nil }
	if _, err := f.lifecycle.GenerateAccessCode(f.ctx); !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("err = %v, want ErrCodeSpaceExhausted", err)
	}
	if _, err := f.lifecycle.CreateSale(f.ctx, f.sellerID, NewSale{
		Title:       "Another",
		ClaimStart:  f.now,
		ClaimEnd:    f.now.Add(time.Hour),
		PickupStart: f.now.Add(time.Hour),
		PickupEnd:   f.now.Add(2 * time.Hour),
	}); !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("CreateSale: err = %v, want ErrCodeSpaceExhausted", err)
	}
}

func TestSaleByAccessCode(t *testing.T) {
	f := newFixture(t)
	sale, phase, err := f.lifecycle.SaleByAccessCode(f.ctx, " "+strings.ToLower(f.sale.AccessCode)+" ")
	if err != nil {
		t.Fatalf("SaleByAccessCode: %v", err)
	}
	if sale.ID != f.sale.ID || phase != model.PhaseClaiming {
		t.Errorf("got sale %d phase %s, want %d claiming", sale.ID, phase, f.sale.ID)
	}
	if _, _, err := f.lifecycle.SaleByAccessCode(f.ctx, "NOPE2345"); !errors.Is(err, ErrSaleNotFound) {
		t.Errorf("unknown code: err = %v, want ErrSaleNotFound", err)
	}
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)
	stranger := f.seller("stranger@example.com")

	if _, err := f.lifecycle.AddItem(f.ctx, stranger, f.sale.ID, NewItem{Title: "Lamp", StartingPriceCents: 500}); !errors.Is(err, ErrForbidden) {
		t.Errorf("other seller: err = %v, want ErrForbidden", err)
	}
	if _, err := f.lifecycle.AddItem(f.ctx, f.sellerID, f.sale.ID, NewItem{Title: "Lamp"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero price: err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.lifecycle.AddItem(f.ctx, f.sellerID, 999, NewItem{Title: "Lamp", StartingPriceCents: 500}); !errors.Is(err, ErrSaleNotFound) {
		t.Errorf("unknown sale: err = %v, want ErrSaleNotFound", err)
	}

	item, err := f.lifecycle.AddItem(f.ctx, f.sellerID, f.sale.ID, NewItem{Title: " Lamp ", StartingPriceCents: 500})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.Title != "Lamp" || item.Status != model.ItemAvailable || len(item.QRCode) != qrCodeLength {
		t.Errorf("item = %+v", item)
	}
	if item.QRCode == f.item.QRCode {
		t.Error("qr code reused")
	}
	items, err := f.lifecycle.ListItems(f.ctx, f.sale.ID)
	if err != nil || len(items) != 2 {
		t.Errorf("ListItems = %d items, %v; want 2", len(items), err)
	}
}

func TestCancelSale(t *testing.T) {
	f := newFixture(t)
	stranger := f.seller("stranger@example.com")
	if err := f.lifecycle.CancelSale(f.ctx, stranger, f.sale.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other seller: err = %v, want ErrForbidden", err)
	}
	if err := f.lifecycle.CancelSale(f.ctx, f.sellerID, f.sale.ID); err != nil {
		t.Fatalf("CancelSale: %v", err)
	}
	sale, err := f.sales.GetByID(f.ctx, f.sale.ID)
	if err != nil {
		t.Fatalf("loading sale: %v", err)
	}
	if got := f.lifecycle.Phase(sale, f.now); got != model.PhaseClosed {
		t.Errorf("phase = %s, want closed", got)
	}
}

func TestItemTransitions(t *testing.T) {
	if !CanTransition(model.ItemAvailable, model.ItemClaimed) {
		t.Error("available -> claimed rejected")
	}
	if CanTransition(model.ItemClaimed, model.ItemAvailable) {
		t.Error("claimed -> available allowed")
	}
	if CanTransition(model.ItemClaimed, model.ItemClaimed) {
		t.Error("claimed -> claimed allowed")
	}
}
