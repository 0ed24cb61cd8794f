package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/middleware"
	"github.com/iliyamo/estate-claims/internal/service"
)

// OfferHandler serves the buyer's offer endpoints.  Every route runs behind
// middleware.BuyerSession with a required session.
type OfferHandler struct {
	Ledger *service.OfferLedger
}

func NewOfferHandler(l *service.OfferLedger) *OfferHandler { return &OfferHandler{Ledger: l} }

type offerReq struct {
	AmountCents   int64  `json:"amount_cents"`
	MaxOfferCents *int64 `json:"max_offer_cents"`
}

// Place records an offer on an item, or raises the buyer's existing one.
func (h *OfferHandler) Place(c echo.Context) error {
	buyer := middleware.CurrentBuyer(c)
	if buyer == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session required"})
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	var req offerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	offer, err := h.Ledger.PlaceOffer(ctx, service.PlaceOfferRequest{
		ItemID:        itemID,
		BuyerID:       buyer.ID,
		AmountCents:   req.AmountCents,
		MaxOfferCents: req.MaxOfferCents,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, offer)
}

// Update raises one of the buyer's own offers.
func (h *OfferHandler) Update(c echo.Context) error {
	buyer := middleware.CurrentBuyer(c)
	if buyer == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session required"})
	}
	offerID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid offer id")
	}
	var req offerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	offer, err := h.Ledger.UpdateOfferAmount(ctx, offerID, buyer.ID, req.AmountCents, req.MaxOfferCents)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, offer)
}

// Get returns one of the buyer's own offers.
func (h *OfferHandler) Get(c echo.Context) error {
	buyer := middleware.CurrentBuyer(c)
	if buyer == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session required"})
	}
	offerID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid offer id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	offer, err := h.Ledger.GetOffer(ctx, offerID)
	if err != nil {
		return writeError(c, err)
	}
	if offer.BuyerID != buyer.ID {
		return writeError(c, service.ErrForbidden)
	}
	return c.JSON(http.StatusOK, offer)
}

// Mine lists the buyer's offers, newest first.
func (h *OfferHandler) Mine(c echo.Context) error {
	buyer := middleware.CurrentBuyer(c)
	if buyer == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	offers, err := h.Ledger.ListBuyerOffers(ctx, buyer.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"offers": offers})
}
