package staking

import (
	"context"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// ClaimRewards claims all pending rewards. The contract decides what is claimable.
func (s *Service) ClaimRewards(ctx context.Context, from common.Address) bool {
	err := s.claim(ctx, from)
	return s.report(lifecycle.OpClaim, err, texts{
		success:   cmn.T(cmn.MsgClaimSuccess),
		cancelled: cmn.T(cmn.MsgClaimCancelled),
		failed:    cmn.T(cmn.MsgClaimFailed),
	})
}

func (s *Service) claim(ctx context.Context, from common.Address) (err error) {
	sess, err := s.begin(lifecycle.OpClaim, cmn.T(cmn.MsgClaiming))
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
		return s.contract.Send(ctx, from, "claimRewards")
	})
	if err != nil {
		return err
	}
	sess.Submitted(tx)

	if _, err = s.contract.Wait(ctx, tx); err != nil {
		return err
	}
	sess.Confirm()

	log.Info().Str("tx", tx.Hash().Hex()).Msg("ClaimRewards: confirmed")
	return nil
}
