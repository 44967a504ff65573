package giya

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Each maps to a stable
// machine-readable condition the API layer can translate for end users.
var (
	// General errors
	ErrNotFound      = errors.New("giya: not found")
	ErrAlreadyExists = errors.New("giya: already exists")
	ErrInvalidInput  = errors.New("giya: invalid input")

	// Account / ledger errors
	ErrAccountNotFound     = errors.New("giya: account not found")
	ErrInsufficientBalance = errors.New("giya: insufficient points balance")

	// Accrual errors
	ErrInvalidAmount   = errors.New("giya: invalid spend amount")
	ErrDuplicateRecord = errors.New("giya: duplicate ledger record")

	// Business errors
	ErrBusinessNotFound = errors.New("giya: business not found")
	ErrBusinessInactive = errors.New("giya: business is inactive")

	// Offer errors
	ErrOfferNotFound  = errors.New("giya: offer not found")
	ErrOfferInactive  = errors.New("giya: offer is inactive")
	ErrOfferExpired   = errors.New("giya: offer is outside its validity window")
	ErrOfferExhausted = errors.New("giya: offer redemptions exhausted")

	// Redemption token errors
	ErrTokenNotFound         = errors.New("giya: redemption token not found")
	ErrTokenBusinessMismatch = errors.New("giya: token belongs to another business")
	ErrTokenAlreadyConsumed  = errors.New("giya: token already consumed")
	ErrTokenCancelled        = errors.New("giya: token is cancelled")

	// Commission errors
	ErrCommissionNotFound = errors.New("giya: commission grant not found")

	// Store errors
	ErrTransactionConflict = errors.New("giya: transaction conflict")
	ErrStoreUnavailable    = errors.New("giya: store unavailable")
	ErrStoreClosed         = errors.New("giya: store is closed")
	ErrMigrationFailed     = errors.New("giya: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("giya: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrBusinessNotFound) ||
		errors.Is(err, ErrOfferNotFound) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrCommissionNotFound)
}

// IsOfferUnavailable returns true if the error means the offer cannot be
// redeemed right now, regardless of the caller's balance.
func IsOfferUnavailable(err error) bool {
	return errors.Is(err, ErrOfferInactive) ||
		errors.Is(err, ErrOfferExpired) ||
		errors.Is(err, ErrOfferExhausted)
}

// IsRetryable returns true if the error is transient and the operation can be
// retried with the same idempotency key. Terminal kinds (insufficient balance,
// exhausted offers, consumed tokens) are never retryable: retrying them cannot
// succeed without new information.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict) ||
		errors.Is(err, ErrStoreUnavailable)
}
