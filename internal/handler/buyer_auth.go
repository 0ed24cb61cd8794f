package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/service"
)

// BuyerAuthHandler serves the one-time code flow for buyers.
type BuyerAuthHandler struct {
	Auth  *service.BuyerAuthService
	Sales *service.SaleLifecycleManager
	// ExposeCodes echoes the issued code in the response.  Only for local
	// development without a delivery worker.
	ExposeCodes bool
}

func NewBuyerAuthHandler(auth *service.BuyerAuthService, sales *service.SaleLifecycleManager, exposeCodes bool) *BuyerAuthHandler {
	return &BuyerAuthHandler{Auth: auth, Sales: sales, ExposeCodes: exposeCodes}
}

type requestCodeReq struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Method  string `json:"method"`
	Resend  bool   `json:"resend"`
}

type requestCodeResp struct {
	BuyerID   uint64    `json:"buyer_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"code,omitempty"`
}

type verifyReq struct {
	Code string `json:"code"`
}

type sessionResp struct {
	SessionToken string       `json:"session_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Buyer        *model.Buyer `json:"buyer"`
}

// RequestCode issues a code for the sale named by its access code and
// hands it to the delivery service.
func (h *BuyerAuthHandler) RequestCode(c echo.Context) error {
	var req requestCodeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sale, _, err := h.Sales.SaleByAccessCode(ctx, c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	issue, err := h.Auth.IssueCode(ctx, service.IssueCodeRequest{
		SaleID:  sale.ID,
		Name:    req.Name,
		Contact: req.Contact,
		Method:  model.ContactMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		Resend:  req.Resend,
	})
	if err != nil {
		return writeError(c, err)
	}
	resp := requestCodeResp{BuyerID: issue.BuyerID, ExpiresAt: issue.ExpiresAt}
	if h.ExposeCodes {
		resp.Code = issue.Code
	}
	return c.JSON(http.StatusAccepted, resp)
}

// Verify exchanges a code for a session token.
func (h *BuyerAuthHandler) Verify(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid buyer id")
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return badRequest(c, "code required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Auth.VerifyCode(ctx, id, req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp{SessionToken: sess.Token, ExpiresAt: sess.ExpiresAt, Buyer: sess.Buyer})
}
