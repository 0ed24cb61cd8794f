package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-claims/internal/config"
	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/utils"
)

const minPasswordLen = 8

// AuthHandler serves seller registration and login.  Sellers authenticate
// with a short-lived access token only; there is no refresh flow.
type AuthHandler struct {
	Cfg     config.Config
	Sellers *repository.SellerRepo
}

func NewAuthHandler(cfg config.Config, s *repository.SellerRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Sellers: s}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type sellerPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	Seller sellerPart `json:"seller"`
	Access tokenPart  `json:"access"`
}

func (r *credentialsReq) normalize() string {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || r.Password == "" {
		return "email/password required"
	}
	return ""
}

// Register creates a seller and returns an access token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.normalize(); msg != "" {
		return badRequest(c, msg)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return badRequest(c, "invalid email")
	}
	if len(req.Password) < minPasswordLen {
		return badRequest(c, "password too short")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Sellers.Create(ctx, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return badRequest(c, "password too long")
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create seller failed"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, model.RoleSeller, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusCreated, authResp{
		Seller: sellerPart{ID: id, Email: req.Email, Role: model.RoleSeller},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login verifies the password and returns a fresh access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.normalize(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sellers.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(s.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if utils.PasswordNeedsRehash(s.PasswordHash, h.Cfg.BcryptCost) {
		if err := h.Sellers.UpdatePassword(ctx, s.ID, req.Password, h.Cfg.BcryptCost); err != nil {
			log.Printf("auth: rehash password for seller %d: %v", s.ID, err)
		}
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, s.ID, model.RoleSeller, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		Seller: sellerPart{ID: s.ID, Email: s.Email, Role: model.RoleSeller},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}
