package model

import (
	"sort"
	"time"
)

// OfferStatus is the state of a single offer.  Once an item is claimed
// exactly one of its offers is winning and none is active.
type OfferStatus string

const (
	OfferActive   OfferStatus = "active"
	OfferWinning  OfferStatus = "winning"
	OfferOutbid   OfferStatus = "outbid"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

// HistoryAction labels an offer_history row.
type HistoryAction string

const (
	ActionPlaced    HistoryAction = "placed"
	ActionIncreased HistoryAction = "increased"
	ActionAccepted  HistoryAction = "accepted"
)

// Offer is a buyer's proposed price for an item.  MaxOfferCents is a soft
// ceiling the buyer is willing to go to; it is recorded for the seller
// but never acted on automatically.
//
// Fields:
//
//	ID            – primary key identifier.
//	ItemID        – item the offer is for.
//	BuyerID       – buyer who placed it.
//	AmountCents   – offered amount.
//	MaxOfferCents – optional soft ceiling (nullable).
//	Status        – see OfferStatus.
//	SellerNotes   – note left by the seller on accept/reject (nullable).
//	CreatedAt     – placement time; breaks ties in ranking.
//	UpdatedAt     – last status or amount change.
type Offer struct {
	ID            uint64      `json:"id"`           // offers.id
	ItemID        uint64      `json:"item_id"`      // offers.item_id
	BuyerID       uint64      `json:"buyer_id"`     // offers.buyer_id
	AmountCents   int64       `json:"offer_amount"` // offers.offer_amount
	MaxOfferCents *int64      `json:"max_offer"`    // offers.max_offer (nullable)
	Status        OfferStatus `json:"status"`       // offers.status
	SellerNotes   *string     `json:"seller_notes"` // offers.seller_notes (nullable)
	CreatedAt     time.Time   `json:"created_at"`   // offers.created_at
	UpdatedAt     time.Time   `json:"updated_at"`   // offers.updated_at
}

// OfferHistoryEntry is one row of the append-only audit trail.
type OfferHistoryEntry struct {
	ID          uint64        `json:"id"`           // offer_history.id
	OfferID     uint64        `json:"offer_id"`     // offer_history.offer_id
	ItemID      uint64        `json:"item_id"`      // offer_history.item_id
	BuyerID     uint64        `json:"buyer_id"`     // offer_history.buyer_id
	AmountCents int64         `json:"offer_amount"` // offer_history.offer_amount
	Action      HistoryAction `json:"action"`       // offer_history.action
	CreatedAt   time.Time     `json:"created_at"`   // offer_history.created_at
}

// OutranksOffer reports whether a ranks strictly ahead of b: higher amount
// first, then earlier placement, then lower id.  The SQL ordering used by
// the repository is the same rule.
func OutranksOffer(a, b Offer) bool {
	if a.AmountCents != b.AmountCents {
		return a.AmountCents > b.AmountCents
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// RankOffers sorts offers in place, highest first.
func RankOffers(offers []Offer) {
	sort.SliceStable(offers, func(i, j int) bool { return OutranksOffer(offers[i], offers[j]) })
}
