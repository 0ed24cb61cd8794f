package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/config"
	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/handler"
	"github.com/iliyamo/estate-claims/internal/middleware"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/service"
)

const testSecret = "router-test-secret"

// newTestServer wires every route over an in-memory store with caching and
// rate limiting off and codes exposed in responses.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	db := database.NewTestDB(t)
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, BcryptCost: 4}

	sales := repository.NewSaleRepo(db)
	lifecycle := service.NewSaleLifecycleManager(sales, repository.NewItemRepo(db))
	ledger := service.NewOfferLedger(db, lifecycle, nil)
	auth := service.NewBuyerAuthService(repository.NewBuyerRepo(db), sales, nil, service.BuyerAuthConfig{CodePepper: "p"})

	e := echo.New()
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewSellerRepo(db)))
	RegisterPublic(e, handler.NewPublicHandler(lifecycle, ledger), middleware.NewRedisCache(config.CacheConfig{}, nil))
	RegisterSeller(e, handler.NewSellerHandler(lifecycle, ledger), cfg.JWTSecret)
	RegisterBuyer(e, handler.NewBuyerAuthHandler(auth, lifecycle, true), handler.NewOfferHandler(ledger), auth,
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil))
	return e
}

type call struct {
	e       *echo.Echo
	t       *testing.T
	bearer  string
	session string
}

// do sends body as JSON and decodes the response into out when non-nil.
func (c call) do(method, path string, body any, want int, out any) map[string]any {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.session != "" {
		req.Header.Set(middleware.HeaderSessionToken, c.session)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)
	if rec.Code != want {
		c.t.Fatalf("%s %s: status %d, want %d: %s", method, path, rec.Code, want, rec.Body)
	}
	var m map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &m)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return m
}

type saleResp struct {
	ID         uint64 `json:"id"`
	AccessCode string `json:"access_code"`
}

type idResp struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

func TestClaimFlow(t *testing.T) {
	e := newTestServer(t)
	anon := call{e: e, t: t}

	var reg struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	anon.do(http.MethodPost, "/v1/seller/register", map[string]string{"email": "s@example.com", "password": "password123"}, http.StatusCreated, &reg)
	anon.do(http.MethodPost, "/v1/seller/register", map[string]string{"email": "s@example.com", "password": "password123"}, http.StatusConflict, nil)
	anon.do(http.MethodPost, "/v1/seller/login", map[string]string{"email": "s@example.com", "password": "wrong-password"}, http.StatusUnauthorized, nil)
	seller := call{e: e, t: t, bearer: reg.Access.Token}

	now := time.Now().UTC()
	var sale saleResp
	seller.do(http.MethodPost, "/v1/seller/sales", map[string]any{
		"title":        "Maple Street",
		"claim_start":  now.Add(-time.Hour).Format(time.RFC3339),
		"claim_end":    now.Add(24 * time.Hour).Format(time.RFC3339),
		"pickup_start": now.Add(25 * time.Hour).Format(time.RFC3339),
		"pickup_end":   now.Add(48 * time.Hour).Format(time.RFC3339),
	}, http.StatusCreated, &sale)

	var item idResp
	seller.do(http.MethodPost, fmt.Sprintf("/v1/seller/sales/%d/items", sale.ID),
		map[string]any{"title": "Oak dresser", "starting_price_cents": 10000}, http.StatusCreated, &item)

	pub := anon.do(http.MethodGet, "/v1/sales/"+sale.AccessCode, nil, http.StatusOK, nil)
	if pub["phase"] != "claiming" {
		t.Fatalf("phase = %v, want claiming", pub["phase"])
	}

	session := func(contact string) call {
		var code struct {
			BuyerID uint64 `json:"buyer_id"`
			Code    string `json:"code"`
		}
		anon.do(http.MethodPost, "/v1/sales/"+sale.AccessCode+"/buyers/code",
			map[string]string{"name": "Buyer", "contact": contact, "method": "email"}, http.StatusAccepted, &code)
		var sess struct {
			Token string `json:"session_token"`
		}
		anon.do(http.MethodPost, fmt.Sprintf("/v1/buyers/%d/verify", code.BuyerID),
			map[string]string{"code": code.Code}, http.StatusOK, &sess)
		return call{e: e, t: t, session: sess.Token}
	}
	alice, bob := session("alice@example.com"), session("bob@example.com")

	offersPath := fmt.Sprintf("/v1/items/%d/offers", item.ID)
	anon.do(http.MethodPost, offersPath, map[string]any{"amount_cents": 10000}, http.StatusUnauthorized, nil)

	low := alice.do(http.MethodPost, offersPath, map[string]any{"amount_cents": 9000}, http.StatusUnprocessableEntity, nil)
	if low["minimum_cents"] != float64(10000) {
		t.Errorf("minimum_cents = %v, want 10000", low["minimum_cents"])
	}

	var a, b idResp
	alice.do(http.MethodPost, offersPath, map[string]any{"amount_cents": 10000}, http.StatusCreated, &a)
	bob.do(http.MethodPost, offersPath, map[string]any{"amount_cents": 12000}, http.StatusCreated, &b)
	alice.do(http.MethodPatch, fmt.Sprintf("/v1/offers/%d", b.ID), map[string]any{"amount_cents": 13000}, http.StatusForbidden, nil)
	bob.do(http.MethodGet, fmt.Sprintf("/v1/offers/%d", b.ID), nil, http.StatusOK, nil)
	alice.do(http.MethodGet, fmt.Sprintf("/v1/offers/%d", b.ID), nil, http.StatusForbidden, nil)

	var candidates struct {
		Offers []idResp `json:"offers"`
	}
	itemOffers := fmt.Sprintf("/v1/seller/items/%d/offers", item.ID)
	seller.do(http.MethodGet, itemOffers+"?status=active", nil, http.StatusOK, &candidates)
	if len(candidates.Offers) != 2 || candidates.Offers[0].ID != b.ID {
		t.Errorf("candidates = %+v, want bob's offer first", candidates.Offers)
	}
	seller.do(http.MethodGet, itemOffers+"?status=bogus", nil, http.StatusBadRequest, nil)

	got := anon.do(http.MethodGet, fmt.Sprintf("/v1/items/%d", item.ID), nil, http.StatusOK, nil)
	if got["highest_offer_cents"] != float64(12000) {
		t.Errorf("highest_offer_cents = %v, want 12000", got["highest_offer_cents"])
	}

	var won idResp
	seller.do(http.MethodPost, fmt.Sprintf("/v1/seller/offers/%d/accept", b.ID), map[string]string{"notes": "Saturday"}, http.StatusOK, &won)
	if won.Status != "winning" {
		t.Errorf("accepted status = %s, want winning", won.Status)
	}
	seller.do(http.MethodPost, fmt.Sprintf("/v1/seller/offers/%d/accept", a.ID), nil, http.StatusConflict, nil)
	alice.do(http.MethodPost, offersPath, map[string]any{"amount_cents": 20000}, http.StatusConflict, nil)

	var history struct {
		History []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	seller.do(http.MethodGet, fmt.Sprintf("/v1/seller/items/%d/history", item.ID), nil, http.StatusOK, &history)
	if n := len(history.History); n != 3 || history.History[2].Action != "accepted" {
		t.Errorf("history = %+v", history.History)
	}

	var mine struct {
		Offers []idResp `json:"offers"`
	}
	alice.do(http.MethodGet, "/v1/my-offers", nil, http.StatusOK, &mine)
	if len(mine.Offers) != 1 || mine.Offers[0].Status != "outbid" {
		t.Errorf("alice's offers = %+v", mine.Offers)
	}
}

func TestSellerRoutesRequireToken(t *testing.T) {
	e := newTestServer(t)
	call{e: e, t: t}.do(http.MethodGet, "/v1/seller/sales", nil, http.StatusUnauthorized, nil)
	call{e: e, t: t, bearer: "garbage"}.do(http.MethodGet, "/v1/seller/sales", nil, http.StatusUnauthorized, nil)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}
