package cmn

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const DISPLAY_PRECISION = 5

var amountRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ToChainUnits converts a human decimal string into the token's smallest units.
// The conversion is exact: more fractional digits than decimals is an error,
// never a rounding.
func ToChainUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if !amountRe.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, s, decimals)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	return d.Shift(int32(decimals)).BigInt(), nil
}

// ToDisplayString formats smallest units with exactly precision fractional
// digits. Lossy: the result must never be converted back for a write.
func ToDisplayString(x *big.Int, decimals int, precision int) string {
	// never show digits the token cannot represent
	precision = min(precision, decimals)

	if x == nil || x.Sign() <= 0 {
		return zeroDisplay(precision)
	}

	return decimal.NewFromBigInt(x, -int32(decimals)).StringFixed(int32(precision))
}

func zeroDisplay(precision int) string {
	if precision <= 0 {
		return "0"
	}
	return "0." + strings.Repeat("0", precision)
}
