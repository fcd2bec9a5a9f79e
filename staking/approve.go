package staking

import (
	"context"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/token"
	"github.com/ethereum/go-ethereum/common"
)

// EnsureApproved is the standalone approval flow: it approves exactly amount
// for spender unless the current allowance already covers it.
func (s *Service) EnsureApproved(ctx context.Context, from common.Address, spender common.Address, amount string) bool {
	err := s.approve(ctx, from, spender, amount)
	return s.report(lifecycle.OpApprove, err, texts{
		success:   cmn.T(cmn.MsgApproveSuccess),
		cancelled: cmn.T(cmn.MsgApproveCancelled),
		failed:    cmn.T(cmn.MsgApproveFailed),
	})
}

func (s *Service) approve(ctx context.Context, from common.Address, spender common.Address, amountText string) (err error) {
	if err := s.guard(lifecycle.OpApprove); err != nil {
		return err
	}

	amount, err := cmn.ToChainUnits(amountText, s.decimals)
	if err != nil {
		return err
	}

	sess, err := s.begin(lifecycle.OpApprove, cmn.T(cmn.MsgApproving))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sess.Fail(err)
		} else if sess.Status() == lifecycle.Idle {
			sess.Close()
		}
	}()

	sent, err := s.token.EnsureApproved(ctx, from, spender, amount, token.Hooks{
		OnAwaitingWallet: func() { sess.AwaitWallet("") },
		OnSubmitted:      sess.Submitted,
	})
	if err != nil {
		return err
	}
	if sent {
		sess.Confirm()
	}
	return nil
}
