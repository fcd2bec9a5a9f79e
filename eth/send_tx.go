package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/signer"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

const lookupTimeout = 10 * time.Second

// Send builds the transaction, asks the confirmer, signs and submits it.
// The returned transaction is signed and already in the node's pool.
func (c *Client) Send(ctx context.Context, from common.Address, to common.Address, data []byte) (*types.Transaction, error) {
	s, confirmer := c.getSigner(from)
	if s == nil {
		return nil, fmt.Errorf("%s: %w", from.Hex(), cmn.ErrNoSigner)
	}

	tx, err := c.BuildTx(ctx, from, to, nil, data)
	if err != nil {
		log.Error().Err(err).Msg("Send: Error building transaction")
		return nil, err
	}

	contract, method := MethodName(data)
	err = confirmer.Confirm(ctx, &signer.Prompt{
		ChainID:  c.ChainID(),
		From:     from,
		To:       to,
		Contract: contract,
		Method:   method,
		Gas:      tx.Gas(),
		MaxFee:   tx.GasFeeCap(),
		Data:     data,
	})
	if err != nil {
		return nil, err
	}

	signedTx, err := s.SignTx(c.chainID, tx)
	if err != nil {
		return nil, fmt.Errorf("error signing transaction: %w", err)
	}

	err = c.rpc(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.backend.SendTransaction(ctx, signedTx)
	})
	if err != nil {
		if err = c.submitted(ctx, signedTx, err); err != nil {
			log.Error().Err(err).Msgf("Send: Cannot send transaction")
			return nil, err
		}
	}

	log.Info().Str("tx", signedTx.Hash().Hex()).Str("method", method).Uint64("nonce", signedTx.Nonce()).Msg("Transaction sent")
	return signedTx, nil
}

// submitted decides what a failed eth_sendRawTransaction means once the
// signed transaction has left the client. It returns nil when the node holds
// the transaction. A clear refusal by the node is returned as is. Anything
// else is wrapped in ErrSubmissionUnknown, which is never retried: a rebuilt
// transaction would get a new nonce and be a second write.
func (c *Client) submitted(ctx context.Context, tx *types.Transaction, sendErr error) error {
	if isAlreadyKnown(sendErr) {
		log.Warn().Err(sendErr).Str("tx", tx.Hash().Hex()).Msg("Send: node already has the transaction")
		return nil
	}

	if errors.Is(sendErr, cmn.ErrProviderUnavailable) && neverConnected(sendErr) {
		return sendErr
	}
	var rc rpc.Error
	if errors.As(sendErr, &rc) {
		return sendErr
	}
	var he rpc.HTTPError
	if errors.As(sendErr, &he) && he.StatusCode == http.StatusTooManyRequests {
		return sendErr
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
	defer cancel()

	var found bool
	err := c.rpc(lctx, "eth_getTransactionByHash", func(ctx context.Context) error {
		t, _, err := c.backend.TransactionByHash(ctx, tx.Hash())
		found = t != nil
		return err
	})
	if err == nil && found {
		log.Warn().Err(sendErr).Str("tx", tx.Hash().Hex()).Msg("Send: transaction found after a failed send")
		return nil
	}

	return fmt.Errorf("%w: %s: %v", cmn.ErrSubmissionUnknown, tx.Hash().Hex(), sendErr)
}

func isAlreadyKnown(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already known") || strings.Contains(s, "known transaction")
}

func neverConnected(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection refused") || strings.Contains(s, "no such host")
}

// Wait blocks until the transaction is mined. There is no timeout beyond ctx.
func (c *Client) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Error().Str("tx", tx.Hash().Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("Wait: transaction reverted")
		return receipt, fmt.Errorf("%w: %s", cmn.ErrReverted, tx.Hash().Hex())
	}

	log.Debug().Str("tx", tx.Hash().Hex()).Uint64("gas", receipt.GasUsed).Msg("Transaction confirmed")
	return receipt, nil
}

func (c *Client) BuildTx(ctx context.Context, from common.Address, to common.Address,
	amount *big.Int, data []byte) (*types.Transaction, error) {

	if amount == nil {
		amount = new(big.Int)
	}

	var nonce uint64
	err := c.rpc(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		var err error
		nonce, err = c.backend.PendingNonceAt(ctx, from)
		return err
	})
	if err != nil {
		log.Error().Msgf("BuildTx: Cannot get nonce. Error:(%v)", err)
		return nil, err
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Gas:   0, // Set to 0 for gas estimation
		Value: amount,
		Data:  data,
	}

	var gasLimit uint64
	err = c.rpc(ctx, "eth_estimateGas", func(ctx context.Context) error {
		var err error
		gasLimit, err = c.backend.EstimateGas(ctx, msg)
		return err
	})
	if err != nil {
		log.Error().Msgf("BuildTx: Cannot estimate gas. Error:(%v)", err)
		return nil, err
	}

	var header *types.Header
	err = c.rpc(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		header, err = c.backend.HeaderByNumber(ctx, nil)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to get the latest block")
		return nil, err
	}

	if header.BaseFee == nil { // pre EIP-1559 chain
		var gasPrice *big.Int
		err = c.rpc(ctx, "eth_gasPrice", func(ctx context.Context) error {
			var err error
			gasPrice, err = c.backend.SuggestGasPrice(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    amount,
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     data,
		}), nil
	}

	var priorityFee *big.Int
	err = c.rpc(ctx, "eth_maxPriorityFeePerGas", func(ctx context.Context) error {
		var err error
		priorityFee, err = c.backend.SuggestGasTipCap(ctx)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to suggest gas tip cap")
		return nil, err
	}

	// max fee = (baseFee + tip) * 2
	maxFeePerGas := new(big.Int).Add(header.BaseFee, priorityFee)
	maxFeePerGas.Mul(maxFeePerGas, big.NewInt(2))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.ChainID(),
		Nonce:     nonce,
		To:        &to,
		Value:     amount,
		Gas:       gasLimit,
		GasFeeCap: maxFeePerGas,
		GasTipCap: priorityFee,
		Data:      data,
	}), nil
}
