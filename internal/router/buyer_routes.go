package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/handler"
	"github.com/iliyamo/estate-claims/internal/middleware"
)

// RegisterBuyer registers the buyer endpoints.  The code endpoints are
// anonymous and rate limited by limit; the offer endpoints require a live
// session token in the X-Session-Token header.
func RegisterBuyer(e *echo.Echo, a *handler.BuyerAuthHandler, o *handler.OfferHandler, sessions middleware.SessionValidator, limit echo.MiddlewareFunc) {
	e.POST("/v1/sales/:code/buyers/code", a.RequestCode, limit)
	e.POST("/v1/buyers/:id/verify", a.Verify, limit)

	g := e.Group("/v1", middleware.BuyerSession(sessions, true))
	g.POST("/items/:id/offers", o.Place)
	g.GET("/offers/:id", o.Get)
	g.PATCH("/offers/:id", o.Update)
	g.GET("/my-offers", o.Mine)
}
