package service

import (
	"context"
	"database/sql"

	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/repository"
)

// ItemClaimStateMachine owns items.status and items.winning_offer_id.  Its
// only transition is available -> claimed and its only caller is
// OfferLedger.AcceptOffer, inside the accept transaction.
type ItemClaimStateMachine struct {
	items *repository.ItemRepo
}

// NewItemClaimStateMachine returns a state machine over items.
func NewItemClaimStateMachine(items *repository.ItemRepo) *ItemClaimStateMachine {
	return &ItemClaimStateMachine{items: items}
}

// CanTransition reports whether from -> to is a legal item transition.
func CanTransition(from, to model.ItemStatus) bool {
	return from == model.ItemAvailable && to == model.ItemClaimed
}

// Claim performs the compare-and-set from available to claimed pointing at
// offerID.  It returns ErrItemAlreadyClaimed when the item was not
// available at commit time; the caller must then abandon the transaction.
func (m *ItemClaimStateMachine) Claim(ctx context.Context, tx *sql.Tx, itemID, offerID uint64) error {
	ok, err := m.items.ClaimTx(ctx, tx, itemID, offerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemAlreadyClaimed
	}
	return nil
}
