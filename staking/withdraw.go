package staking

import (
	"context"
	"math/big"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// Withdraw withdraws the position at index after a fresh read shows it active.
func (s *Service) Withdraw(ctx context.Context, from common.Address, index int) bool {
	err := s.withdraw(ctx, from, index)
	return s.report(lifecycle.OpWithdraw, err, texts{
		success:   cmn.T(cmn.MsgWithdrawSuccess),
		cancelled: cmn.T(cmn.MsgWithdrawCancelled),
		failed:    cmn.T(cmn.MsgWithdrawFailed),
	})
}

func (s *Service) withdraw(ctx context.Context, from common.Address, index int) (err error) {
	if err := s.guard(lifecycle.OpWithdraw); err != nil {
		return err
	}

	if index < 0 {
		return cmn.Errorf(cmn.ClassValidation, "withdraw", "invalid stake index %d", index)
	}

	pos, err := s.StakeInfo(ctx, from, index)
	if err != nil {
		return err
	}
	if !pos.Active {
		return &notActiveError{index: index}
	}

	sess, err := s.begin(lifecycle.OpWithdraw, cmn.T(cmn.MsgWithdrawing))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sess.Fail(err)
		}
	}()

	sess.AwaitWallet("")
	tx, err := retry.Run(ctx, s.policy, func(ctx context.Context) (*types.Transaction, error) {
		return s.contract.Send(ctx, from, "withdraw", big.NewInt(int64(index)))
	})
	if err != nil {
		return err
	}
	sess.Submitted(tx)

	if _, err = s.contract.Wait(ctx, tx); err != nil {
		return err
	}
	sess.Confirm()

	log.Info().Str("tx", tx.Hash().Hex()).Int("index", index).Msg("Withdraw: confirmed")
	return nil
}
