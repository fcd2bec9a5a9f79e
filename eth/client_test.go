package eth

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/retry"
	"github.com/AlexNa-Holdings/web3stake/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var spender = common.HexToAddress("0x00000000000000000000000000000000000051ea")

func newSimulated(t *testing.T) (*simulated.Backend, *Client, *signer.KeySigner) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := signer.NewKeySigner(key)

	funds := new(big.Int).Mul(big.NewInt(1_000_000_000_000_000_000), big.NewInt(10))
	sim := simulated.NewBackend(types.GenesisAlloc{s.Address(): {Balance: funds}})
	t.Cleanup(func() { sim.Close() })

	c, err := NewClient(context.Background(), sim.Client(), Options{RateLimit: 1000})
	require.NoError(t, err)
	c.AddSigner(s)

	return sim, c, s
}

func TestClientSendAndWait(t *testing.T) {
	ctx := context.Background()
	sim, c, s := newSimulated(t)

	assert.Equal(t, int64(1337), c.ChainID().Int64())

	var prompts []*signer.Prompt
	c.SetConfirmer(signer.ConfirmFunc(func(ctx context.Context, p *signer.Prompt) error {
		prompts = append(prompts, p)
		return nil
	}))

	data, err := ERC20.Pack("approve", spender, big.NewInt(5))
	require.NoError(t, err)

	tx, err := c.Send(ctx, s.Address(), spender, data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())

	sim.Commit()

	receipt, err := c.Wait(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	require.Len(t, prompts, 1)
	assert.Equal(t, "Token", prompts[0].Contract)
	assert.Equal(t, "approve", prompts[0].Method)
	assert.Equal(t, s.Address(), prompts[0].From)
	assert.Equal(t, tx.Gas(), prompts[0].Gas)
}

func TestClientSendRejected(t *testing.T) {
	ctx := context.Background()
	sim, c, s := newSimulated(t)
	c.SetConfirmer(signer.RejectAll)

	data, err := STAKING.Pack("claimRewards")
	require.NoError(t, err)

	_, err = c.Send(ctx, s.Address(), spender, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, cmn.ErrUserRejected)
	assert.Equal(t, cmn.ClassUserRejected, cmn.ClassOf(err))

	sim.Commit()
	nonce, err := sim.Client().PendingNonceAt(ctx, s.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}

func TestClientSendUnknownSigner(t *testing.T) {
	_, c, _ := newSimulated(t)

	_, err := c.Send(context.Background(), spender, spender, nil)
	assert.ErrorIs(t, err, cmn.ErrNoSigner)
}

func TestClientReads(t *testing.T) {
	ctx := context.Background()
	_, c, s := newSimulated(t)

	code, err := c.CodeAt(ctx, spender)
	require.NoError(t, err)
	assert.Empty(t, code)

	tok := NewERC20(c, spender)
	deployed, err := tok.Deployed(ctx)
	require.NoError(t, err)
	assert.False(t, deployed)

	out, err := c.Call(ctx, s.Address(), spender, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClientChainIDMismatch(t *testing.T) {
	sim := simulated.NewBackend(types.GenesisAlloc{})
	defer sim.Close()

	_, err := NewClient(context.Background(), sim.Client(), Options{ChainID: 56})
	assert.Error(t, err)
}

func TestMethodName(t *testing.T) {
	data, err := STAKING.Pack("withdraw", big.NewInt(2))
	require.NoError(t, err)

	contract, method := MethodName(data)
	assert.Equal(t, "Staking", contract)
	assert.Equal(t, "withdraw", method)

	contract, method = MethodName([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Empty(t, contract)
	assert.Empty(t, method)

	_, method = MethodName(nil)
	assert.Empty(t, method)
}

// flakySend fails the first fail sends with err. With forward set the node
// still receives the transaction before the error comes back.
type flakySend struct {
	simulated.Client
	fail    int
	forward bool
	err     error
	sends   int
}

func (f *flakySend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sends++
	if f.sends > f.fail {
		return f.Client.SendTransaction(ctx, tx)
	}
	if f.forward {
		if err := f.Client.SendTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return f.err
}

func newFlaky(t *testing.T, fs *flakySend) (*Client, *signer.KeySigner, *int) {
	sim, _, s := newSimulated(t)
	fs.Client = sim.Client()

	c, err := NewClient(context.Background(), fs, Options{RateLimit: 1000})
	require.NoError(t, err)
	c.AddSigner(s)

	prompts := new(int)
	c.SetConfirmer(signer.ConfirmFunc(func(ctx context.Context, p *signer.Prompt) error {
		*prompts++
		return nil
	}))
	return c, s, prompts
}

func claimWithRetry(ctx context.Context, c *Client, from common.Address) (*types.Transaction, error) {
	data, err := STAKING.Pack("claimRewards")
	if err != nil {
		return nil, err
	}
	p := retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, IsRetryable: retry.Retryable}
	return retry.Run(ctx, p, func(ctx context.Context) (*types.Transaction, error) {
		return c.Send(ctx, from, spender, data)
	})
}

func pendingNonce(t *testing.T, fs *flakySend, a common.Address) uint64 {
	n, err := fs.Client.PendingNonceAt(context.Background(), a)
	require.NoError(t, err)
	return n
}

func TestClientSendAlreadyKnownIsSent(t *testing.T) {
	fs := &flakySend{fail: 1, forward: true, err: errors.New("already known")}
	c, s, prompts := newFlaky(t, fs)

	tx, err := claimWithRetry(context.Background(), c, s.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, 1, fs.sends)
	assert.Equal(t, 1, *prompts)
	assert.Equal(t, uint64(1), pendingNonce(t, fs, s.Address()))
}

func TestClientSendTimeoutAfterAccept(t *testing.T) {
	fs := &flakySend{fail: 1, forward: true, err: errors.New("i/o timeout")}
	c, s, prompts := newFlaky(t, fs)

	tx, err := claimWithRetry(context.Background(), c, s.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, 1, fs.sends)
	assert.Equal(t, 1, *prompts)
	assert.Equal(t, uint64(1), pendingNonce(t, fs, s.Address()))
}

func TestClientSendUnknownOutcomeNotRetried(t *testing.T) {
	fs := &flakySend{fail: 1, err: errors.New("unexpected EOF")}
	c, s, prompts := newFlaky(t, fs)

	_, err := claimWithRetry(context.Background(), c, s.Address())
	require.Error(t, err)
	assert.ErrorIs(t, err, cmn.ErrSubmissionUnknown)
	var exhausted *retry.ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, fs.sends)
	assert.Equal(t, 1, *prompts)
	assert.Equal(t, uint64(0), pendingNonce(t, fs, s.Address()))
}

func TestClientSendRefusedIsRetried(t *testing.T) {
	fs := &flakySend{fail: 1, err: rpc.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"}}
	c, s, prompts := newFlaky(t, fs)

	tx, err := claimWithRetry(context.Background(), c, s.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, 2, fs.sends)
	assert.Equal(t, 2, *prompts)
	assert.Equal(t, uint64(1), pendingNonce(t, fs, s.Address()))
}
