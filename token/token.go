// Package token reads balances and allowances of the staked ERC20 token and
// submits approvals only when the current allowance is not enough.
package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/eth"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

type AllowanceRecord struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

type Metadata struct {
	Symbol   string
	Decimals int
}

// Hooks report progress of an approval that is actually sent.
type Hooks struct {
	OnAwaitingWallet func()
	OnSubmitted      func(tx *types.Transaction)
}

type Service struct {
	contract *eth.Contract
	policy   retry.Policy

	mu      sync.Mutex
	lastErr error
}

func New(chain eth.Chain, address common.Address, policy retry.Policy) *Service {
	return &Service{
		contract: eth.NewERC20(chain, address),
		policy:   policy,
	}
}

func (s *Service) Address() common.Address {
	return s.contract.Address
}

// Balance is a retried balanceOf read.
func (s *Service) Balance(ctx context.Context, a common.Address) (*big.Int, error) {
	return retry.Run(ctx, s.policy, func(ctx context.Context) (*big.Int, error) {
		var decodedResult struct {
			Balance *big.Int
		}
		err := s.contract.Call(ctx, a, &decodedResult, "balanceOf", a)
		if err != nil {
			return nil, err
		}
		return decodedResult.Balance, nil
	})
}

// GetBalance never fails: on exhaustion it records the error and returns 0.
func (s *Service) GetBalance(ctx context.Context, a common.Address) *big.Int {
	b, err := s.Balance(ctx, a)
	if err != nil {
		log.Error().Err(err).Str("address", a.Hex()).Msg("GetBalance: Cannot read balance")
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return new(big.Int)
	}
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	return b
}

// LastError is the error of the latest GetBalance, nil once a read succeeds.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Allowance is a retried, never cached allowance read.
func (s *Service) Allowance(ctx context.Context, owner, spender common.Address) (*AllowanceRecord, error) {
	amount, err := retry.Run(ctx, s.policy, func(ctx context.Context) (*big.Int, error) {
		var decodedResult struct {
			Amount *big.Int
		}
		err := s.contract.Call(ctx, owner, &decodedResult, "allowance", owner, spender)
		if err != nil {
			return nil, err
		}
		return decodedResult.Amount, nil
	})
	if err != nil {
		return nil, err
	}

	return &AllowanceRecord{Owner: owner, Spender: spender, Amount: amount}, nil
}

// EnsureApproved makes sure spender may move amount of owner's tokens.
// With enough allowance nothing is sent and sent is false. Otherwise an
// approval for exactly amount is sent and waited for.
func (s *Service) EnsureApproved(ctx context.Context, owner, spender common.Address, amount *big.Int, hooks Hooks) (sent bool, err error) {
	deployed, err := retry.Run(ctx, s.policy, s.contract.Deployed)
	if err != nil {
		return false, err
	}
	if !deployed {
		return false, fmt.Errorf("token %s: %w", s.contract.Address.Hex(), cmn.ErrNotDeployed)
	}

	a, err := s.Allowance(ctx, owner, spender)
	if err != nil {
		return false, err
	}

	if a.Amount.Cmp(amount) >= 0 {
		log.Debug().Str("owner", owner.Hex()).Str("spender", spender.Hex()).
			Str("allowance", a.Amount.String()).Msg("EnsureApproved: allowance sufficient")
		return false, nil
	}

	if hooks.OnAwaitingWallet != nil {
		hooks.OnAwaitingWallet()
	}

	tx, err := retry.Run(ctx, s.policy, func(ctx context.Context) (*types.Transaction, error) {
		return s.contract.Send(ctx, owner, "approve", spender, amount)
	})
	if err != nil {
		return false, err
	}

	if hooks.OnSubmitted != nil {
		hooks.OnSubmitted(tx)
	}

	if _, err = s.contract.Wait(ctx, tx); err != nil {
		log.Error().Err(err).Str("tx", tx.Hash().Hex()).Msg("EnsureApproved: approval not confirmed")
		return true, err
	}

	log.Info().Str("tx", tx.Hash().Hex()).Str("amount", amount.String()).Msg("EnsureApproved: approved")
	return true, nil
}

func (s *Service) Metadata(ctx context.Context) (*Metadata, error) {
	return retry.Run(ctx, s.policy, func(ctx context.Context) (*Metadata, error) {
		var symbol struct {
			Result string
		}
		if err := s.contract.Call(ctx, common.Address{}, &symbol, "symbol"); err != nil {
			return nil, err
		}

		var decimals struct {
			Result uint8
		}
		if err := s.contract.Call(ctx, common.Address{}, &decimals, "decimals"); err != nil {
			return nil, err
		}

		return &Metadata{Symbol: symbol.Result, Decimals: int(decimals.Result)}, nil
	})
}
