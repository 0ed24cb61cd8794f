package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/estate-claims/internal/repository"
)

// Domain errors returned by the services.  Handlers map them to HTTP
// responses with errors.Is; anything else is an infrastructure failure.
var (
	ErrAuthCodeExpired    = errors.New("auth code expired")
	ErrAuthCodeMismatch   = errors.New("auth code does not match")
	ErrTooManyAttempts    = errors.New("too many wrong codes, request a new one")
	ErrSessionActive      = errors.New("buyer already holds an active session")
	ErrSaleNotClaiming    = errors.New("offers are closed for this sale")
	ErrItemNotAvailable   = errors.New("item is no longer available")
	ErrItemAlreadyClaimed = errors.New("item already claimed")
	ErrOfferBelowMinimum  = errors.New("offer below minimum")
	ErrOfferNotActive     = errors.New("offer is not active")
	ErrInvalidMaxOffer    = errors.New("max offer must not be below the offer amount")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCodeSpaceExhausted = errors.New("could not generate a unique code")

	ErrForbidden     = repository.ErrForbidden
	ErrSaleNotFound  = repository.ErrSaleNotFound
	ErrItemNotFound  = repository.ErrItemNotFound
	ErrBuyerNotFound = repository.ErrBuyerNotFound
	ErrOfferNotFound = repository.ErrOfferNotFound
)

// OfferBelowMinimumError carries the smallest amount that would have been
// accepted.  It matches ErrOfferBelowMinimum with errors.Is.
type OfferBelowMinimumError struct {
	MinimumCents int64
}

func (e *OfferBelowMinimumError) Error() string {
	return fmt.Sprintf("offer below minimum: must be at least %d cents", e.MinimumCents)
}

func (e *OfferBelowMinimumError) Is(target error) bool { return target == ErrOfferBelowMinimum }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

var domainErrors = []error{
	ErrAuthCodeExpired, ErrAuthCodeMismatch, ErrTooManyAttempts, ErrSessionActive, ErrSaleNotClaiming, ErrItemNotAvailable,
	ErrItemAlreadyClaimed, ErrOfferBelowMinimum, ErrOfferNotActive, ErrInvalidMaxOffer, ErrInvalidInput,
	ErrCodeSpaceExhausted, ErrForbidden, ErrSaleNotFound, ErrItemNotFound, ErrBuyerNotFound, ErrOfferNotFound,
}

// IsDomainError reports whether err is one of the errors above, i.e. an
// expected outcome rather than a storage or transport failure.
func IsDomainError(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

// MySQL server errors worth a second attempt.
const (
	mysqlDuplicateKey    = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// retryable reports whether a failed transaction may be attempted again:
// only infrastructure failures qualify, and never after cancellation.  A
// MySQL server error is retried for lock timeouts, deadlocks and
// constraint violations; anything else it reports (syntax, access) would
// fail the same way twice.
func retryable(err error) bool {
	if err == nil || IsDomainError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock, mysqlDuplicateKey, mysqlRowIsReferenced, mysqlNoReferencedRow:
			return true
		}
		return false
	}
	return true
}
