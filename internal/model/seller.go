package model

import "time"

// Seller represents an account that owns estate sales.  Sellers sign in
// with email and password and receive a short-lived JWT; buyers never
// have rows in this table.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash of the password.
//	CreatedAt    – timestamp of creation.
type Seller struct {
	ID           uint64    // sellers.id
	Email        string    // sellers.email
	PasswordHash string    // sellers.password_hash
	CreatedAt    time.Time // sellers.created_at
}

// RoleSeller is the JWT role claim carried by seller access tokens.
const RoleSeller = "SELLER"
