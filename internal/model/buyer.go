package model

import "time"

// ContactMethod selects how a buyer receives their one-time code.
type ContactMethod string

const (
	ContactEmail ContactMethod = "email"
	ContactSMS   ContactMethod = "sms"
)

// Buyer is a per-sale identity created the first time someone submits a
// contact for that sale.  Neither the auth code nor the session token is
// kept in cleartext: AuthCodeHash and SessionTokenHash hold digests.
//
// Fields:
//
//	ID               – primary key identifier.
//	SaleID           – sale the buyer is scoped to.
//	Name             – display name.
//	Email            – contact email (nullable).
//	Phone            – contact phone (nullable).
//	AuthCodeHash     – keyed digest of the current one-time code; empty once consumed.
//	AuthCodeExpires  – expiry of the current code.
//	AuthAttempts     – wrong guesses against the current code.
//	AuthVerified     – whether the buyer has ever verified a code.
//	SessionTokenHash – SHA-256 of the current session token (nullable).
//	SessionExpires   – session expiry (nullable).
//	LastActivity     – last authenticated request (nullable).
//	CreatedAt        – timestamp of creation.
type Buyer struct {
	ID               uint64     `json:"id"`            // buyers.id
	SaleID           uint64     `json:"sale_id"`       // buyers.sale_id
	Name             string     `json:"name"`          // buyers.name
	Email            *string    `json:"email"`         // buyers.email (nullable)
	Phone            *string    `json:"phone"`         // buyers.phone (nullable)
	AuthCodeHash     string     `json:"-"`             // buyers.auth_code
	AuthCodeExpires  *time.Time `json:"-"`             // buyers.auth_code_expires
	AuthAttempts     int        `json:"-"`             // buyers.auth_attempts
	AuthVerified     bool       `json:"auth_verified"` // buyers.auth_verified
	SessionTokenHash *string    `json:"-"`             // buyers.session_token (nullable)
	SessionExpires   *time.Time `json:"-"`             // buyers.session_expires (nullable)
	LastActivity     *time.Time `json:"-"`             // buyers.last_activity (nullable)
	CreatedAt        time.Time  `json:"created_at"`    // buyers.created_at
}

// HasLiveSession reports whether the buyer is verified and holds a session
// that has not yet expired at now.
func (b *Buyer) HasLiveSession(now time.Time) bool {
	return b.AuthVerified && b.SessionTokenHash != nil && b.SessionExpires != nil && b.SessionExpires.After(now)
}
