package redemption

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// codeBytes is the entropy of a token code. 20 random bytes (160 bits) is
// comfortably beyond brute-force guessing for codes that are only live
// between issuance and a counter scan.
const codeBytes = 20

// codeEncoding is unpadded base32 so codes survive manual entry: no
// lowercase/uppercase ambiguity and no URL-hostile characters.
var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewCode mints a cryptographically random token code, e.g.
// "GY-MFRGGZDFMZTWQ2LKNNWG23TPOBYXE43U". The "GY-" prefix is cosmetic only;
// validation matches the full string exactly.
func NewCode() string {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the platform RNG is broken; minting a
		// guessable code instead would be worse than crashing.
		panic(fmt.Sprintf("redemption: rand.Read: %v", err))
	}
	return "GY-" + codeEncoding.EncodeToString(buf)
}
