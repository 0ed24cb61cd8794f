package model

import "time"

// ItemStatus is the claim state of an item.  The only transition is
// available -> claimed; claimed items are never reopened.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemClaimed   ItemStatus = "claimed"
)

// Item is a single good listed under a sale.  CurrentHighOfferCents and
// OfferCount are denormalized caches maintained by atomic updates when
// offers are placed or raised; zero means no offer yet.
//
// Fields:
//
//	ID                    – primary key identifier.
//	SaleID                – sale the item belongs to.
//	Title                 – display title.
//	Description           – free-form description.
//	StartingPriceCents    – minimum acceptable first offer.
//	CurrentHighOfferCents – highest offer amount seen so far.
//	OfferCount            – number of offers placed.
//	Status                – available or claimed.
//	WinningOfferID        – set exactly when Status is claimed.
//	QRCode                – unique code printed on the item tag.
//	CreatedAt             – timestamp of creation.
type Item struct {
	ID                    uint64     `json:"id"`                 // items.id
	SaleID                uint64     `json:"sale_id"`            // items.sale_id
	Title                 string     `json:"title"`              // items.title
	Description           string     `json:"description"`        // items.description
	StartingPriceCents    int64      `json:"starting_price"`     // items.starting_price
	CurrentHighOfferCents int64      `json:"current_high_offer"` // items.current_high_offer
	OfferCount            int        `json:"offer_count"`        // items.offer_count
	Status                ItemStatus `json:"status"`             // items.status
	WinningOfferID        *uint64    `json:"winning_offer_id"`   // items.winning_offer_id (nullable)
	QRCode                string     `json:"qr_code"`            // items.qr_code
	CreatedAt             time.Time  `json:"created_at"`         // items.created_at
}
