package cmn

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsAddressShaped reports whether s is a 0x-prefixed 20 byte hex address.
// Checksums are not enforced.
func IsAddressShaped(s string) bool {
	return addressRe.MatchString(strings.TrimSpace(s))
}

func ParseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !IsAddressShaped(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func IsZeroAddress(a common.Address) bool {
	return a == (common.Address{})
}

// SameAddress compares a text address with a parsed one, ignoring case.
func SameAddress(s string, a common.Address) bool {
	p, ok := ParseAddress(s)
	return ok && p == a
}

func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
