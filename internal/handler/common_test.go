package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/iliyamo/estate-claims/internal/service"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&service.OfferBelowMinimumError{MinimumCents: 100}, http.StatusUnprocessableEntity, "offer_below_minimum"},
		{fmt.Errorf("wrapped: %w", service.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{service.ErrInvalidMaxOffer, http.StatusBadRequest, "invalid_input"},
		{service.ErrAuthCodeMismatch, http.StatusBadRequest, "auth_code_mismatch"},
		{service.ErrAuthCodeExpired, http.StatusGone, "auth_code_expired"},
		{service.ErrTooManyAttempts, http.StatusTooManyRequests, "auth_attempts_exceeded"},
		{service.ErrSessionActive, http.StatusConflict, "session_active"},
		{service.ErrSaleNotClaiming, http.StatusConflict, "sale_not_claiming"},
		{service.ErrItemNotAvailable, http.StatusConflict, "item_not_available"},
		{service.ErrItemAlreadyClaimed, http.StatusConflict, "item_already_claimed"},
		{service.ErrOfferNotActive, http.StatusConflict, "offer_not_active"},
		{service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{service.ErrOfferNotFound, http.StatusNotFound, "not_found"},
		{service.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, "code_space_exhausted"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("errorStatus(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}
