package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name         string
		money        Money
		wantAmount   int64
		wantCurrency string
		wantString   string
	}{
		{"pesos", PHP(25000), 25000, "php", "₱250.00"},
		{"dollars", USD(4900), 4900, "usd", "$49.00"},
		{"zero pesos", Zero("PHP"), 0, "php", "₱0.00"},
		{"negative", PHP(-1550), -1550, "php", "₱-15.50"},
		{"sub-unit amount", PHP(5), 5, "php", "₱0.05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.wantAmount {
				t.Errorf("amount: got %d, want %d", tt.money.Amount, tt.wantAmount)
			}
			if tt.money.Currency != tt.wantCurrency {
				t.Errorf("currency: got %q, want %q", tt.money.Currency, tt.wantCurrency)
			}
			if got := tt.money.String(); got != tt.wantString {
				t.Errorf("string: got %q, want %q", got, tt.wantString)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	t.Run("add", func(t *testing.T) {
		got := PHP(10000).Add(PHP(2500))
		if !got.Equal(PHP(12500)) {
			t.Errorf("got %v, want ₱125.00", got)
		}
	})

	t.Run("subtract", func(t *testing.T) {
		got := PHP(10000).Subtract(PHP(2500))
		if !got.Equal(PHP(7500)) {
			t.Errorf("got %v, want ₱75.00", got)
		}
	})

	t.Run("multiply", func(t *testing.T) {
		got := PHP(150).Multiply(3)
		if !got.Equal(PHP(450)) {
			t.Errorf("got %v, want ₱4.50", got)
		}
	})

	t.Run("divide truncates", func(t *testing.T) {
		got := PHP(1001).Divide(2)
		if !got.Equal(PHP(500)) {
			t.Errorf("got %v, want ₱5.00", got)
		}
	})

	t.Run("divide by zero panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		PHP(100).Divide(0)
	})

	t.Run("currency mismatch panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		PHP(100).Add(USD(100))
	})
}

func TestMoneyComparisons(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"is zero", PHP(0).IsZero(), true},
		{"is not zero", PHP(1).IsZero(), false},
		{"is positive", PHP(1).IsPositive(), true},
		{"zero is not positive", PHP(0).IsPositive(), false},
		{"is negative", PHP(-1).IsNegative(), true},
		{"equal", PHP(100).Equal(PHP(100)), true},
		{"different currency not equal", PHP(100).Equal(USD(100)), false},
		{"less than", PHP(50).LessThan(PHP(100)), true},
		{"greater than", PHP(100).GreaterThan(PHP(50)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		name  string
		money Money
		want  string
	}{
		{"whole", PHP(25000), "250.00"},
		{"with centavos", PHP(25099), "250.99"},
		{"zero", PHP(0), "0.00"},
		{"negative", PHP(-1234), "-12.34"},
		{"single centavo", PHP(1), "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		name  string
		money Money
		want  string
	}{
		{"php symbol", PHP(25000), "₱250.00"},
		{"usd symbol", USD(4900), "$49.00"},
		{"eur symbol", Money{Amount: 1000, Currency: "eur"}, "€10.00"},
		{"unknown currency", Money{Amount: 1000, Currency: "jpy"}, "JPY 10.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	data, err := json.Marshal(PHP(25000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Amount != 25000 {
		t.Errorf("amount: got %d, want 25000", decoded.Amount)
	}
	if decoded.Currency != "php" {
		t.Errorf("currency: got %q, want php", decoded.Currency)
	}
	if decoded.Display != "₱250.00" {
		t.Errorf("display: got %q, want ₱250.00", decoded.Display)
	}
}

func TestSum(t *testing.T) {
	t.Run("sums values", func(t *testing.T) {
		got := Sum(PHP(100), PHP(200), PHP(300))
		if !got.Equal(PHP(600)) {
			t.Errorf("got %v, want ₱6.00", got)
		}
	})

	t.Run("empty defaults to zero pesos", func(t *testing.T) {
		got := Sum()
		if !got.Equal(PHP(0)) {
			t.Errorf("got %v, want ₱0.00", got)
		}
	})
}
