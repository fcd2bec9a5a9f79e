package staking

import (
	"context"
	"math/big"

	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/ethereum/go-ethereum/common"
)

func (s *Service) UserAccount(ctx context.Context, user common.Address) (*UserAccount, error) {
	return retry.Run(ctx, s.policy, func(ctx context.Context) (*UserAccount, error) {
		var decodedResult struct {
			Info userInfo
		}
		if err := s.contract.Call(ctx, user, &decodedResult, "getUserInfo", user); err != nil {
			return nil, err
		}
		return decodedResult.Info.account(), nil
	})
}

// StakeInfo is a fresh read of one position.
func (s *Service) StakeInfo(ctx context.Context, user common.Address, index int) (*StakePosition, error) {
	return retry.Run(ctx, s.policy, func(ctx context.Context) (*StakePosition, error) {
		var decodedResult struct {
			Stake stakeInfo
		}
		if err := s.contract.Call(ctx, user, &decodedResult, "getUserStakeInfo", user, big.NewInt(int64(index))); err != nil {
			return nil, err
		}
		p := decodedResult.Stake.position(index)
		return &p, nil
	})
}

// ListPositions reads every position of owner, ordered by index.
// Pending rewards and fees are as reported by the contract at read time.
func (s *Service) ListPositions(ctx context.Context, owner common.Address) ([]StakePosition, error) {
	return retry.Run(ctx, s.policy, func(ctx context.Context) ([]StakePosition, error) {
		var decodedResult struct {
			Stakes []stakeInfo
		}
		if err := s.contract.Call(ctx, owner, &decodedResult, "getUserStakes", owner); err != nil {
			return nil, err
		}

		list := make([]StakePosition, 0, len(decodedResult.Stakes))
		for i := range decodedResult.Stakes {
			list = append(list, decodedResult.Stakes[i].position(i))
		}
		return list, nil
	})
}

func (s *Service) TotalPendingRewards(ctx context.Context, owner common.Address) (*big.Int, error) {
	list, err := s.ListPositions(ctx, owner)
	if err != nil {
		return nil, err
	}
	return TotalPending(list), nil
}

// TotalPending sums pending rewards of all positions, inactive ones included.
func TotalPending(list []StakePosition) *big.Int {
	sum := new(big.Int)
	for _, p := range list {
		if p.PendingRewards != nil {
			sum.Add(sum, p.PendingRewards)
		}
	}
	return sum
}
