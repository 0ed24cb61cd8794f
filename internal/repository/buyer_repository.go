package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/model"
)

// ErrBuyerNotFound indicates that no buyer row matched.
var ErrBuyerNotFound = errors.New("buyer not found")

const buyerColumns = `id, sale_id, name, email, phone, auth_code, auth_code_expires, auth_attempts, auth_verified,
       session_token, session_expires, last_activity, created_at`

// BuyerRepo persists per-sale buyer identities together with their
// one-time code and session digests.  Raw codes and tokens never reach
// this layer.
type BuyerRepo struct {
	db *sql.DB
}

// NewBuyerRepo returns a BuyerRepo bound to the given database.
func NewBuyerRepo(db *sql.DB) *BuyerRepo { return &BuyerRepo{db: db} }

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func scanBuyer(s scanner) (model.Buyer, error) {
	var (
		b                                     model.Buyer
		email, phone, session                 sql.NullString
		codeExpires, sessionExp, lastActivity sql.NullTime
	)
	err := s.Scan(&b.ID, &b.SaleID, &b.Name, &email, &phone, &b.AuthCodeHash, &codeExpires, &b.AuthAttempts, &b.AuthVerified,
		&session, &sessionExp, &lastActivity, &b.CreatedAt)
	if err != nil {
		return model.Buyer{}, err
	}
	b.Email = nullStringPtr(email)
	b.Phone = nullStringPtr(phone)
	b.SessionTokenHash = nullStringPtr(session)
	b.AuthCodeExpires = nullTimePtr(codeExpires)
	b.SessionExpires = nullTimePtr(sessionExp)
	b.LastActivity = nullTimePtr(lastActivity)
	return b, nil
}

func (r *BuyerRepo) getOne(ctx context.Context, q database.Querier, where string, args ...any) (*model.Buyer, error) {
	b, err := scanBuyer(q.QueryRowContext(ctx, `SELECT `+buyerColumns+` FROM buyers WHERE `+where+` LIMIT 1`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBuyerNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetByID fetches a buyer by id.
func (r *BuyerRepo) GetByID(ctx context.Context, id uint64) (*model.Buyer, error) {
	return r.getOne(ctx, r.db, `id = ?`, id)
}

// FindByContact looks up the buyer of a sale by email or by phone.  Exactly
// one of email and phone is expected to be non-empty.
func (r *BuyerRepo) FindByContact(ctx context.Context, saleID uint64, email, phone string) (*model.Buyer, error) {
	if email != "" {
		return r.getOne(ctx, r.db, `sale_id = ? AND email = ?`, saleID, email)
	}
	return r.getOne(ctx, r.db, `sale_id = ? AND phone = ?`, saleID, phone)
}

// GetBySessionHash fetches the buyer holding the given session digest.
func (r *BuyerRepo) GetBySessionHash(ctx context.Context, tokenHash string) (*model.Buyer, error) {
	return r.getOne(ctx, r.db, `session_token = ?`, tokenHash)
}

// Create inserts a buyer and assigns the generated ID.  A concurrent
// insert of the same (sale, contact) pair yields ErrConflict.
func (r *BuyerRepo) Create(ctx context.Context, b *model.Buyer) error {
	const q = `INSERT INTO buyers (sale_id, name, email, phone, auth_code, auth_verified, created_at)
               VALUES (?, ?, ?, ?, '', ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.SaleID, b.Name, b.Email, b.Phone, false, b.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// SetAuthCode overwrites the buyer's current code digest, expiry and
// display name and clears the failed-attempt count.  Any previously issued
// code stops verifying.
func (r *BuyerRepo) SetAuthCode(ctx context.Context, id uint64, name, codeHash string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE buyers SET name = ?, auth_code = ?, auth_code_expires = ?, auth_attempts = 0 WHERE id = ?`,
		name, codeHash, expires.UTC(), id)
	return err
}

// RecordFailedAttempt counts a wrong guess against the code whose digest
// is storedHash.  The guess that reaches maxAttempts clears the code and
// its expiry.  It is a no-op once a different code has been issued.
func (r *BuyerRepo) RecordFailedAttempt(ctx context.Context, id uint64, storedHash string, maxAttempts int) error {
	// auth_attempts is assigned last: MySQL evaluates SET left to right.
	const q = `UPDATE buyers
               SET auth_code = CASE WHEN auth_attempts + 1 >= ? THEN '' ELSE auth_code END,
                   auth_code_expires = CASE WHEN auth_attempts + 1 >= ? THEN NULL ELSE auth_code_expires END,
                   auth_attempts = auth_attempts + 1
               WHERE id = ? AND auth_code = ? AND auth_code <> ''`
	_, err := r.db.ExecContext(ctx, q, maxAttempts, maxAttempts, id, storedHash)
	return err
}

// ConsumeCode atomically swaps a matching, unconsumed code digest for a new
// session.  It returns false when the stored digest no longer equals
// codeHash, e.g. because a concurrent verification consumed it first.
func (r *BuyerRepo) ConsumeCode(ctx context.Context, id uint64, codeHash, tokenHash string, sessionExpires, now time.Time) (bool, error) {
	const q = `UPDATE buyers
               SET auth_code = '', auth_attempts = 0, auth_verified = ?, session_token = ?, session_expires = ?, last_activity = ?
               WHERE id = ? AND auth_code = ? AND auth_code <> ''`
	res, err := r.db.ExecContext(ctx, q, true, tokenHash, sessionExpires.UTC(), now.UTC(), id, codeHash)
	if err != nil {
		return false, err
	}
	n, err := database.RowsAffected(res)
	return n == 1, err
}

// TouchActivity records the time of the buyer's latest authenticated
// request.  Lost updates under races are acceptable.
func (r *BuyerRepo) TouchActivity(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE buyers SET last_activity = ? WHERE id = ?`, at.UTC(), id)
	return err
}
