package router // package router registers the HTTP routes of the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/estate-claims/internal/handler"
	"github.com/iliyamo/estate-claims/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// health check and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers seller registration and login under
// /v1/seller.  These routes issue tokens and therefore carry no JWT
// middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/seller")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterPublic registers the guest browse endpoints.  cache wraps them so
// repeated reads of a popular sale are served from Redis.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/sales/:code", p.GetSale, cache)
	e.GET("/v1/sales/:code/items", p.ListSaleItems, cache)
	e.GET("/v1/items/:id", p.GetItem, cache)
}

// RegisterSeller registers the seller endpoints.  All of them require a
// valid access token with the SELLER role; ownership of the sale, item or
// offer is checked by the services.
func RegisterSeller(e *echo.Echo, h *handler.SellerHandler, jwtSecret string) {
	g := e.Group("/v1/seller", middleware.JWTAuth(jwtSecret), middleware.RequireSeller())
	g.GET("/sales", h.ListSales)
	g.POST("/sales", h.CreateSale)
	g.DELETE("/sales/:id", h.CancelSale)
	g.POST("/sales/:id/items", h.AddItem)
	g.GET("/items/:id/offers", h.ItemOffers)
	g.GET("/items/:id/history", h.ItemHistory)
	g.POST("/offers/:id/accept", h.AcceptOffer)
	g.POST("/offers/:id/reject", h.RejectOffer)
}
