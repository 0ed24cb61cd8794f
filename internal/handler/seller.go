package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/service"
)

// SellerHandler serves the seller's sale, item and offer endpoints.  Routes
// run behind JWTAuth and RequireSeller; ownership is checked by the
// services.
type SellerHandler struct {
	Sales  *service.SaleLifecycleManager
	Ledger *service.OfferLedger
}

func NewSellerHandler(s *service.SaleLifecycleManager, l *service.OfferLedger) *SellerHandler {
	return &SellerHandler{Sales: s, Ledger: l}
}

type createSaleReq struct {
	Title        string     `json:"title"`
	Address      string     `json:"address"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	PreviewStart *time.Time `json:"preview_start"`
	ClaimStart   time.Time  `json:"claim_start"`
	ClaimEnd     time.Time  `json:"claim_end"`
	PickupStart  time.Time  `json:"pickup_start"`
	PickupEnd    time.Time  `json:"pickup_end"`
}

type addItemReq struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	StartingPriceCents int64  `json:"starting_price_cents"`
}

type notesReq struct {
	Notes *string `json:"notes"`
}

// CreateSale creates a sale and returns it with its access code.
func (h *SellerHandler) CreateSale(c echo.Context) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSaleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sale, err := h.Sales.CreateSale(ctx, sellerID, service.NewSale{
		Title:        req.Title,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		PreviewStart: req.PreviewStart,
		ClaimStart:   req.ClaimStart,
		ClaimEnd:     req.ClaimEnd,
		PickupStart:  req.PickupStart,
		PickupEnd:    req.PickupEnd,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sale)
}

// ListSales lists the seller's own sales.
func (h *SellerHandler) ListSales(c echo.Context) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sales, err := h.Sales.ListSellerSales(ctx, sellerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sales": sales})
}

// CancelSale withdraws a sale.
func (h *SellerHandler) CancelSale(c echo.Context) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	saleID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid sale id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Sales.CancelSale(ctx, sellerID, saleID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddItem lists a new item under one of the seller's sales.
func (h *SellerHandler) AddItem(c echo.Context) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	saleID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid sale id")
	}
	var req addItemReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	item, err := h.Sales.AddItem(ctx, sellerID, saleID, service.NewItem{
		Title:              req.Title,
		Description:        req.Description,
		StartingPriceCents: req.StartingPriceCents,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// ItemOffers lists the offers on an item, highest first.  ?status=active
// narrows the list to offers that can still be accepted.
func (h *SellerHandler) ItemOffers(c echo.Context) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	var activeOnly bool
	switch c.QueryParam("status") {
	case "":
	case string(model.OfferActive):
		activeOnly = true
	default:
		return badRequest(c, "status must be active")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	offers, err := h.Ledger.SellerItemOffers(ctx, sellerID, itemID, activeOnly)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"offers": offers})
}

// ItemHistory returns an item's offer audit trail.
func (h *SellerHandler) ItemHistory(c echo.Context) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	entries, err := h.Ledger.History(ctx, sellerID, itemID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"history": entries})
}

// AcceptOffer claims the offer's item for that offer.
func (h *SellerHandler) AcceptOffer(c echo.Context) error {
	return h.resolve(c, h.Ledger.AcceptOffer)
}

// RejectOffer rejects an active offer.
func (h *SellerHandler) RejectOffer(c echo.Context) error {
	return h.resolve(c, h.Ledger.RejectOffer)
}

func (h *SellerHandler) resolve(c echo.Context, op func(ctx context.Context, offerID, sellerID uint64, notes *string) (*model.Offer, error)) error {
	sellerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	offerID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid offer id")
	}
	var req notesReq // body is optional
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	offer, err := op(ctx, offerID, sellerID, req.Notes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, offer)
}
