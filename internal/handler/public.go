package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/service"
)

// PublicHandler serves the unauthenticated browse endpoints.  Responses
// never include buyer contact details.
type PublicHandler struct {
	Sales  *service.SaleLifecycleManager
	Ledger *service.OfferLedger
}

func NewPublicHandler(s *service.SaleLifecycleManager, l *service.OfferLedger) *PublicHandler {
	return &PublicHandler{Sales: s, Ledger: l}
}

type saleView struct {
	*model.Sale
	Phase model.SalePhase `json:"phase"`
}

type itemView struct {
	*model.Item
	HighestOffer *int64 `json:"highest_offer_cents"`
}

// GetSale returns the sale behind an access code with its current phase.
func (h *PublicHandler) GetSale(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	sale, phase, err := h.Sales.SaleByAccessCode(ctx, c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, saleView{Sale: sale, Phase: phase})
}

// ListSaleItems lists the items of the sale behind an access code.
func (h *PublicHandler) ListSaleItems(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	sale, phase, err := h.Sales.SaleByAccessCode(ctx, c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.Sales.ListItems(ctx, sale.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sale_id": sale.ID, "phase": phase, "items": items})
}

// GetItem returns one item with the amount of its highest offer.
func (h *PublicHandler) GetItem(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	item, err := h.Sales.GetItem(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	view := itemView{Item: item}
	top, err := h.Ledger.HighestOffer(ctx, id)
	switch {
	case err == nil:
		view.HighestOffer = &top.AmountCents
	case !errors.Is(err, service.ErrOfferNotFound):
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
