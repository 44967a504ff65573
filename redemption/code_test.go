package redemption_test

import (
	"strings"
	"testing"

	"github.com/giya-app/giya/redemption"
)

func TestNewCodeFormat(t *testing.T) {
	code := redemption.NewCode()

	if !strings.HasPrefix(code, "GY-") {
		t.Errorf("missing prefix: %q", code)
	}

	// 20 bytes of entropy encode to 32 unpadded base32 characters.
	suffix := strings.TrimPrefix(code, "GY-")
	if len(suffix) != 32 {
		t.Errorf("suffix length: got %d, want 32 (%q)", len(suffix), suffix)
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	for _, r := range suffix {
		if !strings.ContainsRune(alphabet, r) {
			t.Errorf("character %q outside base32 alphabet in %q", r, code)
		}
	}
}

func TestNewCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		code := redemption.NewCode()
		if seen[code] {
			t.Fatalf("duplicate code minted: %s", code)
		}
		seen[code] = true
	}
}
