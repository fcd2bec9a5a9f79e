package staking

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StakePosition is a read-only snapshot of one deposit. Index is its ordinal
// in the owner's position list.
type StakePosition struct {
	Index          int       `json:"index"`
	Amount         *big.Int  `json:"amount"`
	StartTime      time.Time `json:"startTime"`
	RateBps        *big.Int  `json:"rateBps"`
	PendingRewards *big.Int  `json:"pendingRewards"`
	WithdrawFee    *big.Int  `json:"withdrawFee"`
	Active         bool      `json:"active"`
}

type UserAccount struct {
	TotalStaked    *big.Int       `json:"totalStaked"`
	TotalReferred  *big.Int       `json:"totalReferred"`
	Referrer       common.Address `json:"referrer"`
	StakingRateBps *big.Int       `json:"stakingRateBps"`
}

// HasReferrer reports whether a referrer is bound. A bound referrer never changes.
func (u *UserAccount) HasReferrer() bool {
	return u.Referrer != (common.Address{})
}

// stakeInfo and userInfo follow the field order of the contract tuples.
type stakeInfo struct {
	Amount         *big.Int
	StartTime      *big.Int
	Rate           *big.Int
	PendingRewards *big.Int
	WithdrawFee    *big.Int
	Active         bool
}

type userInfo struct {
	TotalStaked   *big.Int
	TotalReferred *big.Int
	Referrer      common.Address
	StakingRate   *big.Int
}

func (si *stakeInfo) position(index int) StakePosition {
	p := StakePosition{
		Index:          index,
		Amount:         orZero(si.Amount),
		RateBps:        orZero(si.Rate),
		PendingRewards: orZero(si.PendingRewards),
		WithdrawFee:    orZero(si.WithdrawFee),
		Active:         si.Active,
	}
	if si.StartTime != nil && si.StartTime.IsInt64() {
		p.StartTime = time.Unix(si.StartTime.Int64(), 0)
	}
	return p
}

func (ui *userInfo) account() *UserAccount {
	return &UserAccount{
		TotalStaked:    orZero(ui.TotalStaked),
		TotalReferred:  orZero(ui.TotalReferred),
		Referrer:       ui.Referrer,
		StakingRateBps: orZero(ui.StakingRate),
	}
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
