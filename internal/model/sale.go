package model

import "time"

// SaleStatus is the seller-controlled status column of a sale.  The
// phase a sale is in is computed from its timestamps; the status only
// allows a seller to withdraw the sale altogether.
type SaleStatus string

const (
	SaleActive    SaleStatus = "active"
	SaleCancelled SaleStatus = "cancelled"
)

// SalePhase is the computed lifecycle phase of a sale at a point in time.
type SalePhase string

const (
	PhaseScheduled SalePhase = "scheduled"
	PhasePreview   SalePhase = "preview"
	PhaseClaiming  SalePhase = "claiming"
	PhasePickup    SalePhase = "pickup"
	PhaseClosed    SalePhase = "closed"
)

// Sale is a seller's time-boxed collection of items.  Buyers may submit
// offers only between ClaimStart and ClaimEnd.  AccessCode is the public
// short code used in links and QR posters.
//
// Fields:
//
//	ID           – primary key identifier.
//	SellerID     – owning seller.
//	Title        – display title.
//	Address      – street address of the sale.
//	Latitude     – optional geo latitude.
//	Longitude    – optional geo longitude.
//	PreviewStart – optional start of the browse-only preview window.
//	ClaimStart   – start of the claim window (inclusive).
//	ClaimEnd     – end of the claim window (inclusive).
//	PickupStart  – start of the pickup window.
//	PickupEnd    – end of the pickup window.
//	AccessCode   – unique public code.
//	Status       – active or cancelled.
//	CreatedAt    – timestamp of creation.
type Sale struct {
	ID           uint64     `json:"id"`            // sales.id
	SellerID     uint64     `json:"seller_id"`     // sales.seller_id
	Title        string     `json:"title"`         // sales.title
	Address      string     `json:"address"`       // sales.address
	Latitude     *float64   `json:"latitude"`      // sales.latitude (nullable)
	Longitude    *float64   `json:"longitude"`     // sales.longitude (nullable)
	PreviewStart *time.Time `json:"preview_start"` // sales.preview_start (nullable)
	ClaimStart   time.Time  `json:"claim_start"`   // sales.claim_start
	ClaimEnd     time.Time  `json:"claim_end"`     // sales.claim_end
	PickupStart  time.Time  `json:"pickup_start"`  // sales.pickup_start
	PickupEnd    time.Time  `json:"pickup_end"`    // sales.pickup_end
	AccessCode   string     `json:"access_code"`   // sales.access_code
	Status       SaleStatus `json:"status"`        // sales.status
	CreatedAt    time.Time  `json:"created_at"`    // sales.created_at
}
