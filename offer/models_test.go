package offer_test

import (
	"testing"
	"time"

	"github.com/giya-app/giya/offer"
)

func TestInWindow(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		validFrom  *time.Time
		validUntil *time.Time
		want       bool
	}{
		{"no bounds", nil, nil, true},
		{"within both bounds", &past, &future, true},
		{"before window opens", &future, nil, false},
		{"after window closes", nil, &past, false},
		{"open start, future end", nil, &future, true},
		{"past start, open end", &past, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &offer.Offer{ValidFrom: tt.validFrom, ValidUntil: tt.validUntil}
			if got := o.InWindow(now); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExhausted(t *testing.T) {
	tests := []struct {
		name  string
		limit int64
		count int64
		want  bool
	}{
		{"zero limit is unlimited", 0, 1000000, false},
		{"under limit", 10, 9, false},
		{"at limit", 10, 10, true},
		{"over limit", 10, 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &offer.Offer{RedemptionLimit: tt.limit, RedemptionCount: tt.count}
			if got := o.Exhausted(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
