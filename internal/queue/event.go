// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publishers and the notification consumer.
package queue

import "time"

// EventType names an offer notification.
type EventType string

const (
	EventNewOffer       EventType = "offer.new"
	EventOfferIncreased EventType = "offer.increased"
	EventOfferAccepted  EventType = "offer.accepted"
)

// OfferEvent is published after an offer write commits.  It carries enough
// for a downstream notifier to message the seller (new offers) or the
// buyer (accepted offers) without querying the primary database.
type OfferEvent struct {
	ID          string    `json:"event_id"`
	Type        EventType `json:"type"`
	SaleID      uint64    `json:"sale_id"`
	SellerID    uint64    `json:"seller_id"`
	ItemID      uint64    `json:"item_id"`
	ItemTitle   string    `json:"item_title"`
	OfferID     uint64    `json:"offer_id"`
	BuyerID     uint64    `json:"buyer_id"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CodeDelivery asks the external email/SMS worker to send a one-time code.
type CodeDelivery struct {
	Method      string    `json:"method"`
	Destination string    `json:"destination"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
}
