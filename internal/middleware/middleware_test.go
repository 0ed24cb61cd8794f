package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/config"
	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/utils"
)

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireSeller(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	e.GET("/seller", func(c echo.Context) error {
		return c.String(http.StatusOK, "hello")
	}, JWTAuth(secret), RequireSeller())

	sellerTok, _ := utils.NewAccessToken(secret, 7, model.RoleSeller, 5)
	otherRole, _ := utils.NewAccessToken(secret, 7, "BUYER", 5)
	wrongKey, _ := utils.NewAccessToken("other", 7, model.RoleSeller, 5)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7, "role": model.RoleSeller, "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(secret))
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7, "role": model.RoleSeller,
	}).SignedString([]byte(secret))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Token " + sellerTok.Token, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey.Token, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"no expiry", "Bearer " + noExp, http.StatusUnauthorized},
		{"wrong role", "Bearer " + otherRole.Token, http.StatusForbidden},
		{"seller", "Bearer " + sellerTok.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/seller", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if rec := serve(e, req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

type fakeSessions struct {
	buyers map[string]*model.Buyer
	err    error
}

func (f fakeSessions) ValidateSession(_ context.Context, token string) (*model.Buyer, error) {
	return f.buyers[token], f.err
}

func TestBuyerSession(t *testing.T) {
	v := fakeSessions{buyers: map[string]*model.Buyer{"good": {ID: 5}}}
	e := echo.New()
	whoami := func(c echo.Context) error {
		if b := CurrentBuyer(c); b != nil {
			return c.String(http.StatusOK, "buyer")
		}
		return c.String(http.StatusOK, "anon")
	}
	e.GET("/required", whoami, BuyerSession(v, true))
	e.GET("/optional", whoami, BuyerSession(v, false))

	tests := []struct {
		path, token string
		code        int
		body        string
	}{
		{"/required", "", http.StatusUnauthorized, "session required"},
		{"/required", "stale", http.StatusUnauthorized, "session required"},
		{"/required", "good", http.StatusOK, "buyer"},
		{"/optional", "", http.StatusOK, "anon"},
		{"/optional", "good", http.StatusOK, "buyer"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.token != "" {
			req.Header.Set(HeaderSessionToken, tt.token)
		}
		rec := serve(e, req)
		if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("%s token=%q: %d %q, want %d %q", tt.path, tt.token, rec.Code, rec.Body, tt.code, tt.body)
		}
	}

	broken := echo.New()
	broken.GET("/required", whoami, BuyerSession(fakeSessions{err: errors.New("db down")}, true))
	req := httptest.NewRequest(http.MethodGet, "/required", nil)
	req.Header.Set(HeaderSessionToken, "good")
	if rec := serve(broken, req); rec.Code != http.StatusInternalServerError {
		t.Errorf("validator failure: status = %d, want 500", rec.Code)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || gotHdr.Get("Content-Type") != "application/json" || string(body) != `{"a":1}` {
		t.Errorf("decoded = %d %v %q %v", status, gotHdr, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:6]); ok {
		t.Error("short payload decoded")
	}
	if _, _, _, ok := decodePayload(append([]byte{0, 0, 0, 200, 0, 0, 1, 0}, 'x')); ok {
		t.Error("payload with oversized header length decoded")
	}
}

func TestCacheKeyUsesRequestPath(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{KeyStrategy: "route_query", Prefix: "cache"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/items/:id")
		return cacheKeyFrom(cfg, c)
	}
	a, b := key("/v1/items/1"), key("/v1/items/2")
	if a == b {
		t.Error("different items share a cache key")
	}
	if !strings.HasPrefix(a, "cache:") {
		t.Errorf("key %q lacks prefix", a)
	}
	if key("/v1/items/1?x=1") == a {
		t.Error("query string ignored by route_query")
	}
	cfg.KeyStrategy = "route"
	if key("/v1/items/1?x=1") != key("/v1/items/1") {
		t.Error("query string used by route strategy")
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	if !cw.complete() {
		t.Fatal("body under the limit reported incomplete")
	}
	_, _ = cw.Write([]byte("def"))
	if cw.complete() {
		t.Error("body over the limit reported complete")
	}
	if rec.Body.String() != "abcdef" {
		t.Errorf("client got %q, want the full body", rec.Body)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	ctx := func() echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/v1/sales/ABC/buyers", nil)
		req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/sales/:code/buyers")
		return c
	}
	tests := []struct {
		strategy string
		want     string
	}{
		{"ip_route", "rl:ip:203.0.113.9:route:POST /v1/sales/:code/buyers"},
		{"ip", "rl:ip:203.0.113.9"},
		{"user", "rl:user:anon"},
		{"bogus", "rl:ip:203.0.113.9:route:POST /v1/sales/:code/buyers"},
	}
	for _, tt := range tests {
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: tt.strategy}
		if got := buildRateKey(cfg, ctx()); got != tt.want {
			t.Errorf("%s: key = %q, want %q", tt.strategy, got, tt.want)
		}
	}

	c := ctx()
	c.Set(ctxBuyer, &model.Buyer{ID: 12})
	if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:buyer-12" {
		t.Errorf("buyer key = %q", got)
	}
}

func TestParseBucketResult(t *testing.T) {
	res, ok := parseBucketResult([]interface{}{int64(0), int64(0), int64(4500)})
	if !ok || res.allowed || res.retryMs != 4500 {
		t.Errorf("parse = %+v %v", res, ok)
	}
	if _, ok := parseBucketResult([]interface{}{int64(1)}); ok {
		t.Error("short result parsed")
	}
	if _, ok := parseBucketResult("nope"); ok {
		t.Error("non-array result parsed")
	}
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", ok,
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" || rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Errorf("got %d with headers %v", rec.Code, rec.Header())
	}
}
