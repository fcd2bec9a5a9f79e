package staking

import (
	"context"
	"fmt"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/AlexNa-Holdings/web3stake/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// Callbacks tell the caller which leg of a stake is waiting for the wallet.
type Callbacks struct {
	OnApproving func()
	OnStaking   func()
}

// Stake stakes amount (a decimal string) from the caller. The approval leg,
// if any, is confirmed before the stake is sent. Failures are reported on the
// notification channel and collapse to false.
func (s *Service) Stake(ctx context.Context, from common.Address, amount string, referrer string, cb Callbacks) bool {
	err := s.stake(ctx, from, amount, referrer, cb)
	return s.report(lifecycle.OpStake, err, texts{
		success:   cmn.T(cmn.MsgStakeSuccess),
		cancelled: cmn.T(cmn.MsgStakeCancelled),
		failed:    cmn.T(cmn.MsgStakeFailed),
	})
}

func (s *Service) stake(ctx context.Context, from common.Address, amountText string, referrer string, cb Callbacks) (err error) {
	if err := s.guard(lifecycle.OpStake); err != nil {
		return err
	}

	amount, err := cmn.ToChainUnits(amountText, s.decimals)
	if err != nil {
		return err
	}

	if amount.Cmp(s.minStake) < 0 {
		return fmt.Errorf("stake %s: %w", amountText, cmn.ErrBelowMinimum)
	}

	if cmn.SameAddress(referrer, from) {
		return fmt.Errorf("stake: %w", cmn.ErrSelfReferral)
	}

	res, err := s.ResolveReferrer(ctx, from, referrer)
	if err != nil {
		return err
	}

	if res.Conflict {
		log.Warn().Str("bound", res.Effective.Hex()).Str("input", res.Input).Msg("Stake: supplied referrer ignored")
		s.lifecycle.Notify(lifecycle.KindWarning, cmn.ClassValidation,
			cmn.T(cmn.MsgReferrerConflict, cmn.ShortAddress(res.Effective), res.Input))
	}

	if !res.Bound {
		active, err := s.IsReferrerActive(ctx, res.Effective)
		if err != nil {
			log.Debug().Err(err).Msg("Stake: cannot read referrer positions")
		} else if !active {
			s.lifecycle.Notify(lifecycle.KindWarning, cmn.ClassUnknown,
				cmn.T(cmn.MsgReferrerInactive, cmn.ShortAddress(res.Effective)))
		}
	}

	balance, err := s.token.Balance(ctx, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("stake %s, balance %s: %w", amount, balance, cmn.ErrInsufficientBalance)
	}

	sess, err := s.begin(lifecycle.OpStake, cmn.T(cmn.MsgProcessing))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sess.Fail(err)
		}
	}()

	sent, err := s.token.EnsureApproved(ctx, from, s.contract.Address, amount, token.Hooks{
		OnAwaitingWallet: func() {
			if cb.OnApproving != nil {
				cb.OnApproving()
			}
			sess.AwaitWallet(cmn.T(cmn.MsgApproving))
		},
		OnSubmitted: sess.Submitted,
	})
	if err != nil {
		return err
	}
	if sent {
		sess.LegConfirmed()
	}

	if cb.OnStaking != nil {
		cb.OnStaking()
	}
	sess.AwaitWallet(cmn.T(cmn.MsgStaking))

	tx, err := retry.Run(ctx, s.policy, func(ctx context.Context) (*types.Transaction, error) {
		return s.contract.Send(ctx, from, "stake", amount, res.Effective)
	})
	if err != nil {
		return err
	}
	sess.Submitted(tx)

	if _, err = s.contract.Wait(ctx, tx); err != nil {
		return err
	}
	sess.Confirm()

	log.Info().Str("tx", tx.Hash().Hex()).Str("amount", amount.String()).
		Str("referrer", res.Effective.Hex()).Msg("Stake: confirmed")
	return nil
}
