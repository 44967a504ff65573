package giya_test

import (
	"errors"
	"fmt"
	"testing"

	giya "github.com/giya-app/giya"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"generic not found", giya.ErrNotFound, true},
		{"account", giya.ErrAccountNotFound, true},
		{"business", giya.ErrBusinessNotFound, true},
		{"offer", giya.ErrOfferNotFound, true},
		{"token", giya.ErrTokenNotFound, true},
		{"commission", giya.ErrCommissionNotFound, true},
		{"wrapped", fmt.Errorf("lookup: %w", giya.ErrTokenNotFound), true},
		{"insufficient balance", giya.ErrInsufficientBalance, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := giya.IsNotFound(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsOfferUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"inactive", giya.ErrOfferInactive, true},
		{"expired", giya.ErrOfferExpired, true},
		{"exhausted", giya.ErrOfferExhausted, true},
		{"not found", giya.ErrOfferNotFound, false},
		{"insufficient balance", giya.ErrInsufficientBalance, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := giya.IsOfferUnavailable(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transaction conflict", giya.ErrTransactionConflict, true},
		{"store unavailable", giya.ErrStoreUnavailable, true},
		{"wrapped conflict", fmt.Errorf("tx: %w", giya.ErrTransactionConflict), true},
		{"conflict joined with cause", errors.Join(giya.ErrTransactionConflict, errors.New("database is locked")), true},
		{"insufficient balance", giya.ErrInsufficientBalance, false},
		{"exhausted offer", giya.ErrOfferExhausted, false},
		{"consumed token", giya.ErrTokenAlreadyConsumed, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := giya.IsRetryable(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := giya.ValidationError{Field: "spend_per_point", Message: "must be positive"}

	want := "giya: validation failed for spend_per_point: must be positive"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	var ve giya.ValidationError
	if !errors.As(error(err), &ve) {
		t.Error("errors.As failed to match ValidationError")
	}
}
