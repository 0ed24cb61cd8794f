package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/metrics"
	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/queue"
	"github.com/iliyamo/estate-claims/internal/repository"
)

// OfferLedger records offers, raises them, and resolves an item to a
// single winning offer.  Every write runs in one transaction that first
// touches the item row, so per-item history is appended in commit order.
// Notifications go out only after commit.
type OfferLedger struct {
	db        *sql.DB
	offers    *repository.OfferRepo
	items     *repository.ItemRepo
	sales     *repository.SaleRepo
	buyers    *repository.BuyerRepo
	history   *repository.HistoryRepo
	lifecycle *SaleLifecycleManager
	claims    *ItemClaimStateMachine
	notifier  Notifier

	// withTx runs fn in a transaction on db.
	withTx func(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// NewOfferLedger builds the ledger over db.  The ledger reads the clock of
// lifecycle so that phase checks and timestamps agree.
func NewOfferLedger(db *sql.DB, lifecycle *SaleLifecycleManager, notifier Notifier) *OfferLedger {
	items := repository.NewItemRepo(db)
	return &OfferLedger{
		db:        db,
		offers:    repository.NewOfferRepo(db),
		items:     items,
		sales:     repository.NewSaleRepo(db),
		buyers:    repository.NewBuyerRepo(db),
		history:   repository.NewHistoryRepo(db),
		lifecycle: lifecycle,
		claims:    NewItemClaimStateMachine(items),
		notifier:  notifier,
		withTx: func(ctx context.Context, fn func(tx *sql.Tx) error) error {
			return database.WithTx(ctx, db, fn)
		},
	}
}

func (l *OfferLedger) now() time.Time { return l.lifecycle.now() }

func (l *OfferLedger) publish(typ queue.EventType, sale *model.Sale, item *model.Item, o *model.Offer, at time.Time) {
	if l.notifier == nil {
		return
	}
	l.notifier.Publish(queue.OfferEvent{
		Type:        typ,
		SaleID:      sale.ID,
		SellerID:    sale.SellerID,
		ItemID:      item.ID,
		ItemTitle:   item.Title,
		OfferID:     o.ID,
		BuyerID:     o.BuyerID,
		AmountCents: o.AmountCents,
		OccurredAt:  at,
	})
}

// errRaiseExisting rolls back a placement that found the buyer's own
// active offer on the item.
var errRaiseExisting = errors.New("buyer already holds an active offer")

// PlaceOfferRequest is a buyer's offer on an item.
type PlaceOfferRequest struct {
	ItemID        uint64
	BuyerID       uint64
	AmountCents   int64
	MaxOfferCents *int64
}

// PlaceOffer records a new active offer.  The amount must be at least the
// item's starting price; matching a competitor's amount is allowed.  A
// buyer who already holds an active offer on the item raises it instead.
func (l *OfferLedger) PlaceOffer(ctx context.Context, req PlaceOfferRequest) (*model.Offer, error) {
	if req.AmountCents <= 0 {
		return nil, invalid("amount must be positive")
	}
	if req.MaxOfferCents != nil && *req.MaxOfferCents < req.AmountCents {
		return nil, ErrInvalidMaxOffer
	}
	item, err := l.items.GetByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	buyer, err := l.buyers.GetByID(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyer.SaleID != item.SaleID {
		return nil, ErrForbidden
	}
	sale, err := l.sales.GetByID(ctx, item.SaleID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if !l.lifecycle.IsClaimingOpen(sale, now) {
		return nil, ErrSaleNotClaiming
	}
	if item.Status != model.ItemAvailable {
		return nil, ErrItemNotAvailable
	}

	offer := &model.Offer{
		ItemID:        item.ID,
		BuyerID:       buyer.ID,
		AmountCents:   req.AmountCents,
		MaxOfferCents: req.MaxOfferCents,
		CreatedAt:     now,
	}
	var existing *model.Offer
	err = l.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := l.items.RecordOfferTx(ctx, tx, item.ID, offer.AmountCents)
		if err != nil {
			return err
		}
		if !ok {
			return ErrItemNotAvailable
		}
		// The item row is locked now, so a concurrent placement by the
		// same buyer has either committed its offer or is waiting.
		cur, err := l.offers.ActiveForBuyerItemTx(ctx, tx, buyer.ID, item.ID)
		switch {
		case err == nil:
			existing = cur
			return errRaiseExisting
		case !errors.Is(err, repository.ErrOfferNotFound):
			return fmt.Errorf("looking up existing offer: %w", err)
		}
		if offer.AmountCents < item.StartingPriceCents {
			return &OfferBelowMinimumError{MinimumCents: item.StartingPriceCents}
		}
		if err := l.offers.CreateTx(ctx, tx, offer); err != nil {
			return err
		}
		return l.history.AppendTx(ctx, tx, &model.OfferHistoryEntry{
			OfferID: offer.ID, ItemID: item.ID, BuyerID: buyer.ID,
			AmountCents: offer.AmountCents, Action: model.ActionPlaced, CreatedAt: now,
		})
	})
	if errors.Is(err, errRaiseExisting) {
		return l.increase(ctx, existing, sale, item, req.AmountCents, req.MaxOfferCents, now)
	}
	if err != nil {
		return nil, err
	}
	metrics.OffersPlaced.Inc()
	l.publish(queue.EventNewOffer, sale, item, offer, now)
	return offer, nil
}

// UpdateOfferAmount raises the buyer's own active offer.  The new amount
// must exceed the current one; maxOffer, when given, replaces the stored
// ceiling.
func (l *OfferLedger) UpdateOfferAmount(ctx context.Context, offerID, buyerID uint64, newAmount int64, maxOffer *int64) (*model.Offer, error) {
	offer, err := l.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.BuyerID != buyerID {
		return nil, ErrForbidden
	}
	item, err := l.items.GetByID(ctx, offer.ItemID)
	if err != nil {
		return nil, err
	}
	sale, err := l.sales.GetByID(ctx, item.SaleID)
	if err != nil {
		return nil, err
	}
	return l.increase(ctx, offer, sale, item, newAmount, maxOffer, l.now())
}

func (l *OfferLedger) increase(ctx context.Context, offer *model.Offer, sale *model.Sale, item *model.Item, newAmount int64, maxOffer *int64, now time.Time) (*model.Offer, error) {
	if offer.Status != model.OfferActive {
		return nil, ErrOfferNotActive
	}
	if !l.lifecycle.IsClaimingOpen(sale, now) {
		return nil, ErrSaleNotClaiming
	}
	if item.Status != model.ItemAvailable {
		return nil, ErrItemNotAvailable
	}
	if newAmount <= offer.AmountCents {
		return nil, &OfferBelowMinimumError{MinimumCents: offer.AmountCents + 1}
	}
	if maxOffer != nil && *maxOffer < newAmount {
		return nil, ErrInvalidMaxOffer
	}
	// A stored ceiling the buyer has now gone past moves up with the offer.
	if maxOffer == nil && offer.MaxOfferCents != nil && *offer.MaxOfferCents < newAmount {
		maxOffer = &newAmount
	}

	err := l.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := l.items.RaiseHighOfferTx(ctx, tx, item.ID, newAmount)
		if err != nil {
			return err
		}
		if !ok {
			return ErrItemNotAvailable
		}
		ok, err = l.offers.UpdateAmountTx(ctx, tx, offer.ID, newAmount, maxOffer, now)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := l.offers.GetByIDTx(ctx, tx, offer.ID)
			if err != nil {
				return err
			}
			if cur.Status != model.OfferActive {
				return ErrOfferNotActive
			}
			return &OfferBelowMinimumError{MinimumCents: cur.AmountCents + 1}
		}
		return l.history.AppendTx(ctx, tx, &model.OfferHistoryEntry{
			OfferID: offer.ID, ItemID: item.ID, BuyerID: offer.BuyerID,
			AmountCents: newAmount, Action: model.ActionIncreased, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	offer.AmountCents = newAmount
	if maxOffer != nil {
		offer.MaxOfferCents = maxOffer
	}
	offer.UpdatedAt = now
	metrics.OffersIncreased.Inc()
	l.publish(queue.EventOfferIncreased, sale, item, offer, now)
	return offer, nil
}

// sellerItem loads an item and its sale and checks that sellerID owns the
// sale.
func (l *OfferLedger) sellerItem(ctx context.Context, sellerID, itemID uint64) (*model.Item, *model.Sale, error) {
	item, err := l.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	sale, err := l.sales.GetByID(ctx, item.SaleID)
	if err != nil {
		return nil, nil, err
	}
	if sale.SellerID != sellerID {
		return nil, nil, ErrForbidden
	}
	return item, sale, nil
}

// AcceptOffer makes offerID the winner of its item.  In one transaction the
// item is claimed (compare-and-set), the offer becomes winning, every other
// active offer on the item becomes outbid and an accepted entry is
// appended.  A losing racer gets ErrItemAlreadyClaimed and writes nothing.
// A transaction that fails for infrastructure reasons is retried once.
func (l *OfferLedger) AcceptOffer(ctx context.Context, offerID, sellerID uint64, notes *string) (*model.Offer, error) {
	res, err := l.acceptOnce(ctx, offerID, sellerID, notes)
	if retryable(err) {
		log.Printf("offers: accept offer %d failed, retrying: %v", offerID, err)
		res, err = l.acceptOnce(ctx, offerID, sellerID, notes)
		if errors.Is(err, ErrItemAlreadyClaimed) {
			// The first attempt may have committed before reporting failure.
			if won, ok := l.wonBy(ctx, offerID); ok {
				res, err = won, nil
			}
		}
	}
	if err != nil {
		if errors.Is(err, ErrItemAlreadyClaimed) {
			metrics.AcceptConflicts.Inc()
		}
		return nil, err
	}
	metrics.OffersAccepted.Inc()
	l.publish(queue.EventOfferAccepted, res.sale, res.item, res.offer, res.at)
	return res.offer, nil
}

type acceptResult struct {
	offer *model.Offer
	item  *model.Item
	sale  *model.Sale
	at    time.Time
}

func (l *OfferLedger) acceptOnce(ctx context.Context, offerID, sellerID uint64, notes *string) (*acceptResult, error) {
	offer, err := l.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	item, sale, err := l.sellerItem(ctx, sellerID, offer.ItemID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, model.ItemClaimed) {
		return nil, ErrItemAlreadyClaimed
	}
	now := l.now()
	err = l.withTx(ctx, func(tx *sql.Tx) error {
		if err := l.claims.Claim(ctx, tx, item.ID, offer.ID); err != nil {
			return err
		}
		ok, err := l.offers.TransitionTx(ctx, tx, offer.ID, model.OfferActive, model.OfferWinning, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOfferNotActive
		}
		if _, err := l.offers.OutbidOthersTx(ctx, tx, item.ID, offer.ID, now); err != nil {
			return err
		}
		return l.history.AppendTx(ctx, tx, &model.OfferHistoryEntry{
			OfferID: offer.ID, ItemID: item.ID, BuyerID: offer.BuyerID,
			AmountCents: offer.AmountCents, Action: model.ActionAccepted, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	offer.Status = model.OfferWinning
	if notes != nil {
		offer.SellerNotes = notes
	}
	offer.UpdatedAt = now
	item.Status = model.ItemClaimed
	item.WinningOfferID = &offer.ID
	return &acceptResult{offer: offer, item: item, sale: sale, at: now}, nil
}

// wonBy reports whether offerID is already the recorded winner of its item.
func (l *OfferLedger) wonBy(ctx context.Context, offerID uint64) (*acceptResult, bool) {
	offer, err := l.offers.GetByID(ctx, offerID)
	if err != nil || offer.Status != model.OfferWinning {
		return nil, false
	}
	item, err := l.items.GetByID(ctx, offer.ItemID)
	if err != nil || item.WinningOfferID == nil || *item.WinningOfferID != offerID {
		return nil, false
	}
	sale, err := l.sales.GetByID(ctx, item.SaleID)
	if err != nil {
		return nil, false
	}
	return &acceptResult{offer: offer, item: item, sale: sale, at: offer.UpdatedAt}, true
}

// RejectOffer marks an active offer rejected.  Rejecting an offer that is
// already rejected succeeds without writing; any other non-active status
// yields ErrOfferNotActive.  The item is not touched.
func (l *OfferLedger) RejectOffer(ctx context.Context, offerID, sellerID uint64, notes *string) (*model.Offer, error) {
	offer, err := l.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if _, _, err := l.sellerItem(ctx, sellerID, offer.ItemID); err != nil {
		return nil, err
	}
	switch offer.Status {
	case model.OfferRejected:
		return offer, nil
	case model.OfferActive:
	default:
		return nil, ErrOfferNotActive
	}
	now := l.now()
	err = l.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := l.offers.TransitionTx(ctx, tx, offer.ID, model.OfferActive, model.OfferRejected, notes, now)
		if err != nil || ok {
			return err
		}
		cur, err := l.offers.GetByIDTx(ctx, tx, offer.ID)
		if err != nil {
			return err
		}
		if cur.Status != model.OfferRejected {
			return ErrOfferNotActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.offers.GetByID(ctx, offer.ID)
}

// ExpireStaleOffers expires active offers placed more than hoursOld hours
// ago and returns how many changed.
func (l *OfferLedger) ExpireStaleOffers(ctx context.Context, hoursOld int) (int64, error) {
	if hoursOld <= 0 {
		return 0, invalid("hours must be positive")
	}
	now := l.now()
	n, err := l.offers.ExpireOlderThan(ctx, now.Add(-time.Duration(hoursOld)*time.Hour), now)
	if err != nil {
		return 0, fmt.Errorf("expiring offers: %w", err)
	}
	metrics.OffersExpired.Add(float64(n))
	return n, nil
}

// GetOffer returns one offer.
func (l *OfferLedger) GetOffer(ctx context.Context, offerID uint64) (*model.Offer, error) {
	return l.offers.GetByID(ctx, offerID)
}

// ListOffers returns the item's acceptance candidates (active offers),
// highest first.
func (l *OfferLedger) ListOffers(ctx context.Context, itemID uint64) ([]model.Offer, error) {
	return l.offers.ListByItem(ctx, itemID, model.OfferActive)
}

// HighestOffer returns the offer shown as the item's current high: the
// winner once claimed, otherwise the top active offer.  It returns
// ErrOfferNotFound when the item has neither.
func (l *OfferLedger) HighestOffer(ctx context.Context, itemID uint64) (*model.Offer, error) {
	offers, err := l.offers.ListByItem(ctx, itemID, model.OfferWinning, model.OfferActive)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if offers[i].Status == model.OfferWinning {
			return &offers[i], nil
		}
	}
	if len(offers) == 0 {
		return nil, ErrOfferNotFound
	}
	return &offers[0], nil
}

// ListBuyerOffers returns every offer a buyer has made, newest first.
func (l *OfferLedger) ListBuyerOffers(ctx context.Context, buyerID uint64) ([]model.Offer, error) {
	return l.offers.ListByBuyer(ctx, buyerID)
}

// SellerItemOffers returns the offers on an item owned by sellerID, in
// rank order.  With activeOnly it returns just the acceptance candidates.
func (l *OfferLedger) SellerItemOffers(ctx context.Context, sellerID, itemID uint64, activeOnly bool) ([]model.Offer, error) {
	if _, _, err := l.sellerItem(ctx, sellerID, itemID); err != nil {
		return nil, err
	}
	if activeOnly {
		return l.ListOffers(ctx, itemID)
	}
	return l.offers.ListByItem(ctx, itemID)
}

// History returns an item's audit trail in append order.
func (l *OfferLedger) History(ctx context.Context, sellerID, itemID uint64) ([]model.OfferHistoryEntry, error) {
	if _, _, err := l.sellerItem(ctx, sellerID, itemID); err != nil {
		return nil, err
	}
	return l.history.ListByItem(ctx, itemID)
}
