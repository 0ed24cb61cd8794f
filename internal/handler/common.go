package handler // HTTP handlers for the claim engine

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/middleware"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/service"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the seller id stored by middleware.JWTAuth.  JSON
// numbers arrive as float64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		return t, nil
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// errorStatus maps service errors to an HTTP status and a stable code for
// clients.  Unknown errors map to 500.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrOfferBelowMinimum):
		return http.StatusUnprocessableEntity, "offer_below_minimum"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidMaxOffer):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrAuthCodeMismatch):
		return http.StatusBadRequest, "auth_code_mismatch"
	case errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "auth_attempts_exceeded"
	case errors.Is(err, service.ErrAuthCodeExpired):
		return http.StatusGone, "auth_code_expired"
	case errors.Is(err, service.ErrSessionActive):
		return http.StatusConflict, "session_active"
	case errors.Is(err, service.ErrSaleNotClaiming):
		return http.StatusConflict, "sale_not_claiming"
	case errors.Is(err, service.ErrItemNotAvailable):
		return http.StatusConflict, "item_not_available"
	case errors.Is(err, service.ErrItemAlreadyClaimed):
		return http.StatusConflict, "item_already_claimed"
	case errors.Is(err, service.ErrOfferNotActive):
		return http.StatusConflict, "offer_not_active"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrSaleNotFound), errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrBuyerNotFound), errors.Is(err, service.ErrOfferNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "code_space_exhausted"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err.  Domain errors carry their message; anything else
// is logged and hidden behind a generic body.
func writeError(c echo.Context, err error) error {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("http: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error", "code": code})
	}
	body := echo.Map{"error": err.Error(), "code": code}
	var below *service.OfferBelowMinimumError
	if errors.As(err, &below) {
		body["minimum_cents"] = below.MinimumCents
	}
	return c.JSON(status, body)
}
