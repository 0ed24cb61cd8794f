package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/model"
)

// HeaderSessionToken carries a buyer's session token.
const HeaderSessionToken = "X-Session-Token"

const ctxBuyer = "buyer"

// SessionValidator resolves a session token to a buyer.  A nil buyer with a
// nil error means the token is unknown or expired.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.Buyer, error)
}

// BuyerSession resolves the X-Session-Token header and stores the buyer in
// the context.  With required set, requests without a live session get
// 401; otherwise they continue anonymously.
func BuyerSession(v SessionValidator, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(HeaderSessionToken)
			var buyer *model.Buyer
			if token != "" {
				b, err := v.ValidateSession(c.Request().Context(), token)
				if err != nil {
					log.Printf("session: validate failed: %v", err)
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
				}
				buyer = b
			}
			if buyer == nil && required {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session required"})
			}
			if buyer != nil {
				c.Set(ctxBuyer, buyer)
			}
			return next(c)
		}
	}
}

// CurrentBuyer returns the buyer stored by BuyerSession, or nil.
func CurrentBuyer(c echo.Context) *model.Buyer {
	b, _ := c.Get(ctxBuyer).(*model.Buyer)
	return b
}

// actorID names the caller for rate-limit keys: the buyer or seller when
// known, "anon" otherwise.
func actorID(c echo.Context) string {
	if b := CurrentBuyer(c); b != nil {
		return fmt.Sprintf("buyer-%d", b.ID)
	}
	if v := c.Get(CtxUserID); v != nil {
		return fmt.Sprintf("seller-%v", v)
	}
	return "anon"
}
