package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"

	"github.com/AlexNa-Holdings/web3stake/bus"
	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/metrics"
	"github.com/AlexNa-Holdings/web3stake/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

// Backend is the part of ethclient.Client the adapter uses. The simulated
// backend client satisfies it too.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

type Options struct {
	ChainID      int64 // expected chain id, 0 = accept what the node reports
	RateLimit    int   // calls per second, 0 = auto
	RateAuto     bool
	OnRateChange func(rate int)
}

// Client implements Chain over a go-ethereum backend and a set of signers.
type Client struct {
	backend   Backend
	chainID   *big.Int
	limiter   *rateLimiter
	signers   map[common.Address]signer.Signer
	confirmer signer.Confirmer
	close     func()
	mu        sync.RWMutex
}

var _ Chain = (*Client)(nil)

func Dial(ctx context.Context, url string, opt Options) (*Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("Dial: Cannot dial")
		return nil, fmt.Errorf("%w: %v", cmn.ErrProviderUnavailable, err)
	}

	c, err := NewClient(ctx, client, opt)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.close = client.Close

	log.Trace().Str("url", url).Msg("Dial: Client opened")
	return c, nil
}

func NewClient(ctx context.Context, backend Backend, opt Options) (*Client, error) {
	c := &Client{
		backend:   backend,
		limiter:   newRateLimiter(opt.RateLimit, opt.RateAuto),
		signers:   make(map[common.Address]signer.Signer),
		confirmer: signer.AutoConfirm,
	}
	c.limiter.onChange = opt.OnRateChange

	err := c.rpc(ctx, "eth_chainId", func(ctx context.Context) error {
		var err error
		c.chainID, err = backend.ChainID(ctx)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("NewClient: Cannot get chain id")
		return nil, err
	}

	if opt.ChainID != 0 && c.chainID.Int64() != opt.ChainID {
		return nil, fmt.Errorf("chain id mismatch: node %v, configured %d", c.chainID, opt.ChainID)
	}

	return c, nil
}

func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) AddSigner(s signer.Signer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signers[s.Address()] = s
}

func (c *Client) SetConfirmer(cf signer.Confirmer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmer = cf
}

func (c *Client) getSigner(a common.Address) (signer.Signer, signer.Confirmer) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signers[a], c.confirmer
}

func (c *Client) Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	var output []byte
	err := c.rpc(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		output, err = c.backend.CallContract(ctx, ethereum.CallMsg{
			From: from,
			To:   &to,
			Data: data,
		}, nil)
		return err
	})
	if err != nil {
		log.Debug().Err(err).Str("to", to.Hex()).Msg("Call: Cannot call contract")
		return nil, err
	}
	return output, nil
}

func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	err := c.rpc(ctx, "eth_getCode", func(ctx context.Context) error {
		var err error
		code, err = c.backend.CodeAt(ctx, addr, nil)
		return err
	})
	return code, err
}

// rpc runs one node call through the rate limiter and classifies its failure.
func (c *Client) rpc(ctx context.Context, method string, f func(ctx context.Context) error) error {
	if err := c.limiter.waitForToken(ctx); err != nil {
		return err
	}

	err := f(ctx)
	c.handleRPCResult(err)
	metrics.RPCCalls.WithLabelValues(method, metrics.Result(err)).Inc()

	if err != nil && isUnreachable(err) {
		return fmt.Errorf("%w: %v", cmn.ErrProviderUnavailable, err)
	}
	return err
}

// handleRPCResult checks for rate limit errors and reports success/failure
func (c *Client) handleRPCResult(err error) {
	if err != nil && isRateLimitError(err) {
		c.limiter.onRateLimitError()
		bus.Send("ui", "notify-error", &bus.B_Notify{
			Kind:    "error",
			Class:   cmn.ClassTransient.String(),
			Message: fmt.Sprintf("Chain %v: RPC rate limit (429)", c.chainID),
		})
	} else if err != nil && isGatewayError(err) {
		bus.Send("ui", "notify-error", &bus.B_Notify{
			Kind:    "error",
			Class:   cmn.ClassTransient.String(),
			Message: fmt.Sprintf("Chain %v: RPC gateway error", c.chainID),
		})
	} else if err == nil {
		c.limiter.onSuccess()
	}
}

func isUnreachable(err error) bool {
	var ne *net.OpError
	if errors.As(err, &ne) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "connection refused") || strings.Contains(s, "no such host")
}
