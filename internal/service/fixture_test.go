package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/queue"
	"github.com/iliyamo/estate-claims/internal/repository"
)

// recordingNotifier captures published events synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.OfferEvent
}

func (n *recordingNotifier) Publish(ev queue.OfferEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []queue.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]queue.EventType, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *sql.DB
	now time.Time

	sales     *repository.SaleRepo
	items     *repository.ItemRepo
	buyers    *repository.BuyerRepo
	offers    *repository.OfferRepo
	history   *repository.HistoryRepo
	lifecycle *SaleLifecycleManager
	ledger    *OfferLedger
	notifier  *recordingNotifier

	sellerID uint64
	sale     *model.Sale
	item     *model.Item
}

// newFixture returns a store holding one seller with one sale whose claim
// window opened an hour ago and closes in 24 hours, and one item starting
// at $100.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.NewTestDB(t)
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		now:      time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC),
		sales:    repository.NewSaleRepo(db),
		items:    repository.NewItemRepo(db),
		buyers:   repository.NewBuyerRepo(db),
		offers:   repository.NewOfferRepo(db),
		history:  repository.NewHistoryRepo(db),
		notifier: &recordingNotifier{},
	}
	f.lifecycle = NewSaleLifecycleManager(f.sales, f.items)
	f.lifecycle.Now = func() time.Time { return f.now }
	f.ledger = NewOfferLedger(db, f.lifecycle, f.notifier)

	f.sellerID = f.seller("seller@example.com")
	f.sale = f.newSale(f.sellerID)
	f.item = f.newItem(f.sale.ID, 10000)
	return f
}

func (f *fixture) seller(email string) uint64 {
	f.t.Helper()
	id, err := repository.NewSellerRepo(f.db).Create(f.ctx, email, "password123", bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("creating seller: %v", err)
	}
	return id
}

func (f *fixture) newSale(sellerID uint64) *model.Sale {
	f.t.Helper()
	sale, err := f.lifecycle.CreateSale(f.ctx, sellerID, NewSale{
		Title:       "Maple Street estate",
		Address:     "12 Maple Street",
		ClaimStart:  f.now.Add(-time.Hour),
		ClaimEnd:    f.now.Add(24 * time.Hour),
		PickupStart: f.now.Add(25 * time.Hour),
		PickupEnd:   f.now.Add(48 * time.Hour),
	})
	if err != nil {
		f.t.Fatalf("creating sale: %v", err)
	}
	return sale
}

func (f *fixture) newItem(saleID uint64, startingCents int64) *model.Item {
	f.t.Helper()
	item, err := f.lifecycle.AddItem(f.ctx, f.sellerID, saleID, NewItem{
		Title:              "Oak dresser",
		StartingPriceCents: startingCents,
	})
	if err != nil {
		f.t.Fatalf("adding item: %v", err)
	}
	return item
}

var buyerSeq int

// buyer inserts a buyer of saleID with a unique email.
func (f *fixture) buyer(saleID uint64) uint64 {
	f.t.Helper()
	buyerSeq++
	email := fmt.Sprintf("buyer%d@example.com", buyerSeq)
	b := &model.Buyer{SaleID: saleID, Name: "Buyer", Email: &email, CreatedAt: f.now}
	if err := f.buyers.Create(f.ctx, b); err != nil {
		f.t.Fatalf("creating buyer: %v", err)
	}
	return b.ID
}

func (f *fixture) place(buyerID uint64, cents int64) *model.Offer {
	f.t.Helper()
	o, err := f.ledger.PlaceOffer(f.ctx, PlaceOfferRequest{ItemID: f.item.ID, BuyerID: buyerID, AmountCents: cents})
	if err != nil {
		f.t.Fatalf("placing offer of %d: %v", cents, err)
	}
	return o
}

func (f *fixture) reloadItem(id uint64) *model.Item {
	f.t.Helper()
	it, err := f.items.GetByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("loading item: %v", err)
	}
	return it
}

func (f *fixture) reloadOffer(id uint64) *model.Offer {
	f.t.Helper()
	o, err := f.offers.GetByID(f.ctx, id)
	if err != nil {
		f.t.Fatalf("loading offer: %v", err)
	}
	return o
}

func (f *fixture) countRows(table string) int {
	f.t.Helper()
	var n int
	if err := f.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		f.t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

// checkClaimInvariants verifies that claimed, winning_offer_id and the
// single winning offer agree, and that a claimed item has no active offer.
func (f *fixture) checkClaimInvariants(itemID uint64) {
	f.t.Helper()
	item := f.reloadItem(itemID)
	offers, err := f.offers.ListByItem(f.ctx, itemID)
	if err != nil {
		f.t.Fatalf("listing offers: %v", err)
	}
	var winning, active int
	for _, o := range offers {
		switch o.Status {
		case model.OfferWinning:
			winning++
			if item.WinningOfferID == nil || *item.WinningOfferID != o.ID {
				f.t.Errorf("winning offer %d is not the item's winning_offer_id %v", o.ID, item.WinningOfferID)
			}
		case model.OfferActive:
			active++
		}
	}
	claimed := item.Status == model.ItemClaimed
	if claimed != (item.WinningOfferID != nil) {
		f.t.Errorf("status %s with winning_offer_id %v", item.Status, item.WinningOfferID)
	}
	if claimed && winning != 1 {
		f.t.Errorf("claimed item has %d winning offers, want 1", winning)
	}
	if !claimed && winning != 0 {
		f.t.Errorf("available item has %d winning offers", winning)
	}
	if claimed && active != 0 {
		f.t.Errorf("claimed item still has %d active offers", active)
	}
}
