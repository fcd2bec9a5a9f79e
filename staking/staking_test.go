package staking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AlexNa-Holdings/web3stake/bus"
	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/eth/ethtest"
	"github.com/AlexNa-Holdings/web3stake/lifecycle"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/AlexNa-Holdings/web3stake/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	referrer = common.HexToAddress("0xABCDabcdABCDabcdABCDabcdABCDabcdABCD1234")
	bound    = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type fixture struct {
	chain *ethtest.Chain
	lc    *lifecycle.Notifier
	s     *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	chain := ethtest.New()
	p := retry.Default()
	p.Delay = time.Millisecond

	lc := lifecycle.New()
	tok := token.New(chain, ethtest.TokenAddress, p)
	s := New(chain, ethtest.StakingAddress, tok, lc, Options{
		Decimals: 18,
		MinStake: ethtest.Tokens(100),
		Policy:   p,
	})
	return &fixture{chain: chain, lc: lc, s: s}
}

func (f *fixture) lastMessage(t *testing.T) (*lifecycle.Notification, string) {
	t.Helper()
	n := f.lc.LastNotification()
	require.NotNil(t, n)
	return n, n.Message
}

func TestStakeBelowMinimumWritesNothing(t *testing.T) {
	for _, amount := range []string{"0", "1", "99", "99.999999999999999999"} {
		f := setup(t)
		f.chain.SetBalance(user, ethtest.Tokens(1000))

		ok := f.s.Stake(context.Background(), user, amount, referrer.Hex(), Callbacks{})
		assert.False(t, ok, amount)
		assert.Empty(t, f.chain.Sent(), amount)

		n, msg := f.lastMessage(t)
		assert.Equal(t, cmn.ClassValidation.String(), n.Class)
		assert.Equal(t, cmn.T(cmn.MsgMinStake, "100"), msg)
	}
}

func TestStakeInvalidAmount(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(1000))

	assert.False(t, f.s.Stake(context.Background(), user, "150,5", referrer.Hex(), Callbacks{}))
	_, msg := f.lastMessage(t)
	assert.Equal(t, cmn.T(cmn.MsgInvalidAmount), msg)
	assert.Empty(t, f.chain.Sent())
}

func TestStakeSelfReferralWritesNothing(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(1000))

	for _, r := range []string{user.Hex(), strings.ToLower(user.Hex()), " " + user.Hex() + " "} {
		assert.False(t, f.s.Stake(context.Background(), user, "150", r, Callbacks{}))
		_, msg := f.lastMessage(t)
		assert.Equal(t, cmn.T(cmn.MsgSelfReferral), msg)
	}
	assert.Empty(t, f.chain.Sent())
	assert.Equal(t, 0, f.chain.Calls("getUserInfo"))
}

func TestStakeWithNewReferrer(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(200))

	var legs []string
	ok := f.s.Stake(context.Background(), user, "150.0", referrer.Hex(), Callbacks{
		OnApproving: func() { legs = append(legs, "approving") },
		OnStaking: func() {
			legs = append(legs, "staking")
			// the approval is mined before the stake leg starts
			assert.Equal(t, ethtest.Tokens(150).String(), f.chain.AllowanceOf(user, ethtest.StakingAddress).String())
			assert.Equal(t, lifecycle.Confirmed, f.lc.View().Status)
		},
	})

	require.True(t, ok)
	assert.Equal(t, []string{"approving", "staking"}, legs)
	assert.Equal(t, []string{"approve", "stake"}, f.chain.SentMethods())

	sent := f.chain.Sent()
	assert.Equal(t, ethtest.Tokens(150).String(), fmt.Sprint(sent[1].Args[0]))
	assert.Equal(t, referrer, sent[1].Args[1])

	events := f.chain.Events()
	assert.Less(t, indexOf(events, "mined:approve"), indexOf(events, "send:stake"))

	v := f.lc.View()
	assert.Equal(t, lifecycle.Confirmed, v.Status)
	assert.False(t, v.Loading)
	assert.Equal(t, sent[1].Tx.Hash().Hex(), v.TxHash)
	assert.False(t, f.lc.Busy(lifecycle.OpStake))

	assert.Equal(t, referrer, f.chain.User(user).Referrer)
	assert.Equal(t, ethtest.Tokens(50).String(), f.chain.BalanceOf(user).String())

	n, msg := f.lastMessage(t)
	assert.Equal(t, lifecycle.KindSuccess, n.Kind)
	assert.Equal(t, cmn.T(cmn.MsgStakeSuccess), msg)
}

func TestStakeBoundReferrerWins(t *testing.T) {
	ch := bus.Subscribe("ui")
	defer bus.Unsubscribe(ch)

	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(500))
	f.chain.SetAllowance(user, ethtest.StakingAddress, ethtest.Tokens(1000))
	f.chain.BindReferrer(user, bound)

	approving := false
	ok := f.s.Stake(context.Background(), user, "100.0", referrer.Hex(), Callbacks{
		OnApproving: func() { approving = true },
	})

	require.True(t, ok)
	assert.False(t, approving)
	assert.Equal(t, []string{"stake"}, f.chain.SentMethods())
	assert.Equal(t, bound, f.chain.Sent()[0].Args[1])
	assert.Equal(t, bound, f.chain.User(user).Referrer)

	warning := waitNotify(t, ch, "notify-warning", referrer.Hex())
	assert.Equal(t, cmn.T(cmn.MsgReferrerConflict, cmn.ShortAddress(bound), referrer.Hex()), warning.Message)
	assert.Equal(t, cmn.ClassValidation.String(), warning.Class)
}

func TestStakeReferrerRequiredWhenUnbound(t *testing.T) {
	cases := []struct {
		input string
		msg   string
	}{
		{"", cmn.MsgReferrerRequired},
		{"   ", cmn.MsgReferrerRequired},
		{"0x123", cmn.MsgInvalidReferrer},
		{"ABCDabcdABCDabcdABCDabcdABCDabcdABCD1234", cmn.MsgInvalidReferrer},
		{"0x0000000000000000000000000000000000000000", cmn.MsgInvalidReferrer},
	}

	for _, c := range cases {
		f := setup(t)
		f.chain.SetBalance(user, ethtest.Tokens(1000))

		assert.False(t, f.s.Stake(context.Background(), user, "150", c.input, Callbacks{}), c.input)
		_, msg := f.lastMessage(t)
		assert.Equal(t, cmn.T(c.msg), msg, c.input)
		assert.Empty(t, f.chain.Sent(), c.input)
	}
}

func TestStakeInsufficientBalance(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(120))

	assert.False(t, f.s.Stake(context.Background(), user, "150", referrer.Hex(), Callbacks{}))
	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassValidation.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgInsufficientBalance), msg)
	assert.Empty(t, f.chain.Sent())
	assert.False(t, f.lc.View().IsOpen)
}

func TestStakeApprovalRejected(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(200))
	f.chain.FailSend("approve", cmn.ErrUserRejected)

	staking := false
	ok := f.s.Stake(context.Background(), user, "150", referrer.Hex(), Callbacks{
		OnStaking: func() { staking = true },
	})

	assert.False(t, ok)
	assert.False(t, staking)
	assert.Empty(t, f.chain.Sent())

	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassUserRejected.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgStakeCancelled), msg)
	assert.Equal(t, lifecycle.Failed, f.lc.View().Status)
	assert.False(t, f.lc.Busy(lifecycle.OpStake))
}

func TestStakeRefusedWhileInFlight(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(1000))

	sess, err := f.lc.Begin(lifecycle.OpStake, "Stake")
	require.NoError(t, err)
	sess.AwaitWallet("")

	assert.False(t, f.s.Stake(context.Background(), user, "150", referrer.Hex(), Callbacks{}))
	_, msg := f.lastMessage(t)
	assert.Equal(t, cmn.T(cmn.MsgBusy, "stake"), msg)
	assert.Equal(t, 0, f.chain.Calls("getUserInfo"))
	assert.Empty(t, f.chain.Sent())

	// another class is not blocked
	f.chain.AddStake(user, ethtest.Stake{Amount: ethtest.Tokens(100), PendingRewards: ethtest.Tokens(1), Active: true})
	assert.True(t, f.s.ClaimRewards(context.Background(), user))
}

func TestStakeRetriesTransientSend(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(200))
	f.chain.SetAllowance(user, ethtest.StakingAddress, ethtest.Tokens(200))
	f.chain.FailSend("stake", errors.New("nonce too low"), errors.New("429 Too Many Requests"))

	assert.True(t, f.s.Stake(context.Background(), user, "150", referrer.Hex(), Callbacks{}))
	assert.Equal(t, []string{"stake"}, f.chain.SentMethods())
}

func TestStakeRevertedFails(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(200))
	f.chain.SetAllowance(user, ethtest.StakingAddress, ethtest.Tokens(200))
	f.chain.FailWait("stake", fmt.Errorf("%w: out of gas", cmn.ErrReverted))

	assert.False(t, f.s.Stake(context.Background(), user, "150", referrer.Hex(), Callbacks{}))
	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassContractState.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgStakeFailed), msg)
	assert.Equal(t, lifecycle.Failed, f.lc.View().Status)
	assert.Equal(t, []string{"stake"}, f.chain.SentMethods())
}

func TestWithdrawFreshReadInactive(t *testing.T) {
	f := setup(t)
	for i := 0; i < 3; i++ {
		f.chain.AddStake(user, ethtest.Stake{Amount: ethtest.Tokens(100), Active: true})
	}

	// cached snapshot still shows position 2 as active
	list, err := f.s.ListPositions(context.Background(), user)
	require.NoError(t, err)
	require.True(t, list[2].Active)

	f.chain.OnCall("getUserStakeInfo", func() { f.chain.SetStakeActive(user, 2, false) })

	assert.False(t, f.s.Withdraw(context.Background(), user, 2))
	assert.Empty(t, f.chain.Sent())

	n, msg := f.lastMessage(t)
	assert.Equal(t, lifecycle.KindError, n.Kind)
	assert.Equal(t, "ContractStateError", n.Class)
	assert.Equal(t, cmn.T(cmn.MsgStakeNotActive, 2), msg)
	assert.False(t, f.lc.View().IsOpen)
}

func TestWithdraw(t *testing.T) {
	f := setup(t)
	f.chain.AddStake(user, ethtest.Stake{Amount: ethtest.Tokens(100), WithdrawFee: ethtest.Tokens(5), Active: true})

	require.True(t, f.s.Withdraw(context.Background(), user, 0))
	assert.Equal(t, []string{"withdraw"}, f.chain.SentMethods())
	assert.Equal(t, "0", fmt.Sprint(f.chain.Sent()[0].Args[0]))
	assert.Equal(t, ethtest.Tokens(95).String(), f.chain.BalanceOf(user).String())
	assert.Equal(t, lifecycle.Confirmed, f.lc.View().Status)

	// a withdrawn index is terminal
	p, err := f.s.StakeInfo(context.Background(), user, 0)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.False(t, f.s.Withdraw(context.Background(), user, 0))
	assert.Len(t, f.chain.Sent(), 1)
}

func TestWithdrawBadIndex(t *testing.T) {
	f := setup(t)
	assert.False(t, f.s.Withdraw(context.Background(), user, -1))
	assert.False(t, f.s.Withdraw(context.Background(), user, 7))
	assert.Equal(t, 1, f.chain.Calls("getUserStakeInfo"))
	assert.Empty(t, f.chain.Sent())
}

func TestWithdrawRejected(t *testing.T) {
	f := setup(t)
	f.chain.AddStake(user, ethtest.Stake{Amount: ethtest.Tokens(100), Active: true})
	f.chain.FailSend("withdraw", errors.New("MetaMask Tx Signature: User denied transaction signature."))

	assert.False(t, f.s.Withdraw(context.Background(), user, 0))
	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassUserRejected.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgWithdrawCancelled), msg)
	assert.Empty(t, f.chain.Sent())
	assert.True(t, f.chain.Stakes(user)[0].Active)
}

func TestClaimRewards(t *testing.T) {
	f := setup(t)
	f.chain.AddStake(user, ethtest.Stake{Amount: ethtest.Tokens(100), PendingRewards: ethtest.Tokens(7), Active: true})
	f.chain.FailSend("claimRewards", errors.New("503 Service Unavailable"))

	require.True(t, f.s.ClaimRewards(context.Background(), user))
	assert.Equal(t, []string{"claimRewards"}, f.chain.SentMethods())
	assert.Equal(t, ethtest.Tokens(7).String(), f.chain.BalanceOf(user).String())
	_, msg := f.lastMessage(t)
	assert.Equal(t, cmn.T(cmn.MsgClaimSuccess), msg)
}

func TestClaimNothingReverts(t *testing.T) {
	f := setup(t)
	assert.False(t, f.s.ClaimRewards(context.Background(), user))

	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassContractState.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgClaimFailed), msg)
	assert.Equal(t, []string{"claimRewards"}, f.chain.SentMethods())
}

func TestClaimExhausted(t *testing.T) {
	f := setup(t)
	unavailable := fmt.Errorf("eth_sendRawTransaction: %w", cmn.ErrProviderUnavailable)
	f.chain.FailSend("claimRewards", unavailable, unavailable, unavailable)

	assert.False(t, f.s.ClaimRewards(context.Background(), user))
	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassTransient.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgUnavailable), msg)
	assert.Empty(t, f.chain.Sent())
}

func TestEnsureApproved(t *testing.T) {
	f := setup(t)
	f.chain.SetAllowance(user, ethtest.StakingAddress, ethtest.Tokens(300))

	assert.True(t, f.s.EnsureApproved(context.Background(), user, ethtest.StakingAddress, "300"))
	assert.Empty(t, f.chain.Sent())
	assert.False(t, f.lc.Busy(lifecycle.OpApprove))

	assert.True(t, f.s.EnsureApproved(context.Background(), user, ethtest.StakingAddress, "300.5"))
	assert.Equal(t, []string{"approve"}, f.chain.SentMethods())
	assert.Equal(t, "300500000000000000000", f.chain.AllowanceOf(user, ethtest.StakingAddress).String())
	assert.Equal(t, lifecycle.Confirmed, f.lc.View().Status)

	assert.False(t, f.s.EnsureApproved(context.Background(), user, ethtest.StakingAddress, "abc"))
	assert.Len(t, f.chain.Sent(), 1)
}

func TestEnsureApprovedNotDeployed(t *testing.T) {
	f := setup(t)
	f.chain.Undeploy(ethtest.TokenAddress)

	assert.False(t, f.s.EnsureApproved(context.Background(), user, ethtest.StakingAddress, "1"))
	n, msg := f.lastMessage(t)
	assert.Equal(t, cmn.ClassContractState.String(), n.Class)
	assert.Equal(t, cmn.T(cmn.MsgNotDeployed), msg)
}

// waitNotify skips notifications left over from earlier tests.
func waitNotify(t *testing.T, ch chan *bus.Message, typ string, contains string) *bus.B_Notify {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if d, ok := msg.Data.(*bus.B_Notify); ok && msg.Type == typ && strings.Contains(d.Message, contains) {
				return d
			}
		case <-timeout:
			t.Fatalf("no %s notification", typ)
			return nil
		}
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
