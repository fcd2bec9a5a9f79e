package staking

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/ethereum/go-ethereum/common"
)

// Resolution is the referrer a stake would be sent with.
type Resolution struct {
	Effective common.Address `json:"effective"`
	Bound     bool           `json:"bound"`    // Effective is already bound on chain
	Conflict  bool           `json:"conflict"` // the input differs from the bound referrer and is ignored
	Input     string         `json:"input,omitempty"`
}

func (s *Service) HasBoundReferrer(ctx context.Context, caller common.Address) (bool, error) {
	acc, err := s.UserAccount(ctx, caller)
	if err != nil {
		return false, err
	}
	return acc.HasReferrer(), nil
}

// ValidateReferrerAddress accepts an address-shaped, non-zero candidate other than the caller.
func ValidateReferrerAddress(caller common.Address, candidate string) bool {
	a, ok := cmn.ParseAddress(candidate)
	return ok && !cmn.IsZeroAddress(a) && a != caller
}

// IsReferrerActive reports whether the referrer has any active position.
// It is informational only and never blocks a stake.
func (s *Service) IsReferrerActive(ctx context.Context, referrer common.Address) (bool, error) {
	list, err := s.ListPositions(ctx, referrer)
	if err != nil {
		return false, err
	}
	for _, p := range list {
		if p.Active {
			return true, nil
		}
	}
	return false, nil
}

// ResolveReferrer applies the referrer precedence: a bound referrer wins over
// any input; without one the input must be a valid referrer.
func (s *Service) ResolveReferrer(ctx context.Context, caller common.Address, input string) (*Resolution, error) {
	input = strings.TrimSpace(input)

	acc, err := s.UserAccount(ctx, caller)
	if err != nil {
		return nil, err
	}

	r := &Resolution{Input: input}
	if acc.HasReferrer() {
		r.Effective = acc.Referrer
		r.Bound = true
		r.Conflict = input != "" && !cmn.SameAddress(input, acc.Referrer)
		return r, nil
	}

	if input == "" {
		return nil, fmt.Errorf("referrer: %w", cmn.ErrReferrerRequired)
	}

	a, ok := cmn.ParseAddress(input)
	if !ok || cmn.IsZeroAddress(a) {
		return nil, fmt.Errorf("referrer %q: %w", input, cmn.ErrInvalidReferrer)
	}
	if a == caller {
		return nil, fmt.Errorf("referrer %s: %w", a.Hex(), cmn.ErrSelfReferral)
	}

	r.Effective = a
	return r, nil
}

// ReferrerFromURL returns the address-shaped ref parameter of a referral link, or "".
func ReferrerFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if cmn.IsAddressShaped(raw) {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	ref := strings.TrimSpace(u.Query().Get("ref"))
	if ref == "" && u.Fragment != "" {
		// hash routed links: https://host/#/stake?ref=0x...
		if i := strings.Index(u.Fragment, "?"); i >= 0 {
			if q, err := url.ParseQuery(u.Fragment[i+1:]); err == nil {
				ref = strings.TrimSpace(q.Get("ref"))
			}
		}
	}

	if !cmn.IsAddressShaped(ref) {
		return ""
	}
	return ref
}

func ReferralLink(base string, account common.Address) string {
	return strings.TrimRight(base, "/") + "/stake?ref=" + account.Hex()
}
