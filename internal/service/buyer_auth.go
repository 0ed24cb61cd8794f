package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/estate-claims/internal/metrics"
	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/utils"
)

const (
	authCodeDigits     = 6
	sessionTokenBytes  = 32
	defaultCodeTTL     = 15 * time.Minute
	defaultSessionTTL  = 4 * time.Hour
	defaultMaxAttempts = 5
	minPhoneDigits     = 7
	maxPhoneDigits     = 15
)

// BuyerAuthConfig tunes code and session lifetimes.  CodePepper keys the
// code digest and must be kept secret.  MaxAttempts wrong guesses burn a
// code.
type BuyerAuthConfig struct {
	CodeTTL     time.Duration
	SessionTTL  time.Duration
	CodePepper  string
	MaxAttempts int
}

// BuyerAuthService issues one-time contact codes and exchanges them for
// session tokens.  Codes and tokens leave this service only in the
// IssueCode/VerifyCode results; the store sees digests.
type BuyerAuthService struct {
	buyers   *repository.BuyerRepo
	sales    *repository.SaleRepo
	delivery ContactDeliveryService
	cfg      BuyerAuthConfig

	Now      func() time.Time
	NewCode  func() (string, error)
	NewToken func() (string, error)
}

// NewBuyerAuthService wires the service.  Zero values fall back to 15
// minutes for codes, 4 hours for sessions and 5 attempts per code.
func NewBuyerAuthService(buyers *repository.BuyerRepo, sales *repository.SaleRepo, delivery ContactDeliveryService, cfg BuyerAuthConfig) *BuyerAuthService {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = defaultCodeTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &BuyerAuthService{
		buyers:   buyers,
		sales:    sales,
		delivery: delivery,
		cfg:      cfg,
		Now:      utcNow,
		NewCode:  func() (string, error) { return utils.RandomDigits(authCodeDigits) },
		NewToken: func() (string, error) { return utils.RandomHex(sessionTokenBytes) },
	}
}

func (s *BuyerAuthService) now() time.Time { return s.Now().UTC().Truncate(time.Microsecond) }

// IssueCodeRequest identifies who is asking for a code and where to send it.
type IssueCodeRequest struct {
	SaleID  uint64
	Name    string
	Contact string
	Method  model.ContactMethod
	// Resend forces a new code even when the buyer already holds a live
	// session.
	Resend bool
}

// CodeIssue is the result of IssueCode.  Code is the only cleartext copy.
type CodeIssue struct {
	BuyerID   uint64
	Code      string
	ExpiresAt time.Time
}

// Session is the result of a successful VerifyCode.  Token is the only
// cleartext copy.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Buyer     *model.Buyer
}

// normalizeContact returns the email or phone column value for contact.
func normalizeContact(method model.ContactMethod, contact string) (email, phone string, err error) {
	contact = strings.TrimSpace(contact)
	switch method {
	case model.ContactEmail:
		addr, perr := mail.ParseAddress(contact)
		if perr != nil || addr.Address != contact {
			return "", "", invalid("invalid email address")
		}
		return strings.ToLower(addr.Address), "", nil
	case model.ContactSMS:
		var b strings.Builder
		for i, r := range contact {
			switch {
			case r >= '0' && r <= '9':
				b.WriteRune(r)
			case r == '+' && i == 0:
				b.WriteRune(r)
			case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			default:
				return "", "", invalid("invalid phone number")
			}
		}
		p := b.String()
		digits := len(strings.TrimPrefix(p, "+"))
		if digits < minPhoneDigits || digits > maxPhoneDigits {
			return "", "", invalid("invalid phone number")
		}
		return "", p, nil
	default:
		return "", "", invalid("method must be email or sms")
	}
}

// IssueCode creates or reuses the buyer for (sale, contact), stores a fresh
// code digest and hands the code to the delivery service.  A delivery
// failure is logged and does not undo the issuance.
func (s *BuyerAuthService) IssueCode(ctx context.Context, req IssueCodeRequest) (*CodeIssue, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	email, phone, err := normalizeContact(req.Method, req.Contact)
	if err != nil {
		return nil, err
	}
	if _, err := s.sales.GetByID(ctx, req.SaleID); err != nil {
		return nil, err
	}
	now := s.now()

	buyer, err := s.findOrCreate(ctx, req.SaleID, name, email, phone, now)
	if err != nil {
		return nil, err
	}
	if buyer.HasLiveSession(now) && !req.Resend {
		return nil, ErrSessionActive
	}

	code, err := s.NewCode()
	if err != nil {
		return nil, fmt.Errorf("generating auth code: %w", err)
	}
	expires := now.Add(s.cfg.CodeTTL)
	if err := s.buyers.SetAuthCode(ctx, buyer.ID, name, utils.HashCode(s.cfg.CodePepper, code), expires); err != nil {
		return nil, fmt.Errorf("storing auth code: %w", err)
	}
	metrics.AuthCodesIssued.Inc()

	if s.delivery != nil {
		dest := email
		if dest == "" {
			dest = phone
		}
		if err := s.delivery.Send(ctx, req.Method, dest, code); err != nil {
			metrics.NotificationFailures.WithLabelValues("auth_code").Inc()
			log.Printf("buyer-auth: code delivery to buyer %d via %s failed: %v", buyer.ID, req.Method, err)
		}
	}
	return &CodeIssue{BuyerID: buyer.ID, Code: code, ExpiresAt: expires}, nil
}

func (s *BuyerAuthService) findOrCreate(ctx context.Context, saleID uint64, name, email, phone string, now time.Time) (*model.Buyer, error) {
	buyer, err := s.buyers.FindByContact(ctx, saleID, email, phone)
	if err == nil {
		return buyer, nil
	}
	if !errors.Is(err, repository.ErrBuyerNotFound) {
		return nil, fmt.Errorf("looking up buyer: %w", err)
	}
	buyer = &model.Buyer{SaleID: saleID, Name: name, CreatedAt: now}
	if email != "" {
		buyer.Email = &email
	} else {
		buyer.Phone = &phone
	}
	err = s.buyers.Create(ctx, buyer)
	if errors.Is(err, repository.ErrConflict) {
		// Lost a race with a concurrent first contact; use that row.
		return s.buyers.FindByContact(ctx, saleID, email, phone)
	}
	if err != nil {
		return nil, fmt.Errorf("creating buyer: %w", err)
	}
	return buyer, nil
}

// VerifyCode checks code against the buyer's current code and, on success,
// consumes it and opens a new session.  Expiry is checked before the code
// itself, so a stale code reports ErrAuthCodeExpired whether or not it
// matches.  Every wrong guess is counted; the one that reaches MaxAttempts
// burns the code and returns ErrTooManyAttempts, after which the code
// reports ErrAuthCodeExpired.
func (s *BuyerAuthService) VerifyCode(ctx context.Context, buyerID uint64, code string) (*Session, error) {
	buyer, err := s.buyers.GetByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if buyer.AuthCodeExpires == nil || now.After(*buyer.AuthCodeExpires) || buyer.AuthAttempts >= s.cfg.MaxAttempts {
		metrics.AuthVerifications.WithLabelValues("expired").Inc()
		return nil, ErrAuthCodeExpired
	}
	codeHash := utils.HashCode(s.cfg.CodePepper, strings.TrimSpace(code))
	if buyer.AuthCodeHash == "" {
		metrics.AuthVerifications.WithLabelValues("mismatch").Inc()
		return nil, ErrAuthCodeMismatch
	}
	if !utils.EqualHash(buyer.AuthCodeHash, codeHash) {
		if err := s.buyers.RecordFailedAttempt(ctx, buyer.ID, buyer.AuthCodeHash, s.cfg.MaxAttempts); err != nil {
			return nil, fmt.Errorf("recording failed attempt: %w", err)
		}
		if buyer.AuthAttempts+1 >= s.cfg.MaxAttempts {
			metrics.AuthVerifications.WithLabelValues("locked").Inc()
			log.Printf("buyer-auth: code for buyer %d burned after %d wrong guesses", buyer.ID, s.cfg.MaxAttempts)
			return nil, ErrTooManyAttempts
		}
		metrics.AuthVerifications.WithLabelValues("mismatch").Inc()
		return nil, ErrAuthCodeMismatch
	}

	token, err := s.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	expires := now.Add(s.cfg.SessionTTL)
	ok, err := s.buyers.ConsumeCode(ctx, buyer.ID, codeHash, utils.HashToken(token), expires, now)
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	if !ok {
		// A concurrent verification consumed the code first.
		metrics.AuthVerifications.WithLabelValues("mismatch").Inc()
		return nil, ErrAuthCodeMismatch
	}
	metrics.AuthVerifications.WithLabelValues("ok").Inc()

	tokenHash := utils.HashToken(token)
	buyer.AuthCodeHash = ""
	buyer.AuthVerified = true
	buyer.SessionTokenHash = &tokenHash
	buyer.SessionExpires = &expires
	buyer.LastActivity = &now
	return &Session{Token: token, ExpiresAt: expires, Buyer: buyer}, nil
}

// ValidateSession returns the buyer for a live session token, or nil for an
// unknown, expired or unverified one.  A non-nil error means the lookup
// itself failed.
func (s *BuyerAuthService) ValidateSession(ctx context.Context, token string) (*model.Buyer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	buyer, err := s.buyers.GetBySessionHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrBuyerNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("validating session: %w", err)
	}
	now := s.now()
	if !buyer.HasLiveSession(now) {
		return nil, nil
	}
	if err := s.buyers.TouchActivity(ctx, buyer.ID, now); err != nil {
		log.Printf("buyer-auth: touch activity for buyer %d: %v", buyer.ID, err)
	} else {
		buyer.LastActivity = &now
	}
	return buyer, nil
}
