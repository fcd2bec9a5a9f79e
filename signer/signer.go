package signer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer holds one signing key.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// Prompt describes the transaction the wallet is asked to confirm.
type Prompt struct {
	ChainID  *big.Int
	From     common.Address
	To       common.Address
	Contract string // contract name, if known
	Method   string // method name, if known
	Gas      uint64
	MaxFee   *big.Int // per gas
	Data     []byte
}

func (p *Prompt) String() string {
	target := p.To.Hex()
	if p.Contract != "" {
		target = fmt.Sprintf("%s (%s)", p.Contract, p.To.Hex())
	}
	method := p.Method
	if method == "" {
		method = "(unknown)"
	}
	return fmt.Sprintf("chain %v: %s -> %s.%s gas %d max fee %v wei", p.ChainID, p.From.Hex(), target, method, p.Gas, p.MaxFee)
}

// Confirmer is the wallet confirmation step. Returning an error wrapping
// cmn.ErrUserRejected means the user declined.
type Confirmer interface {
	Confirm(ctx context.Context, p *Prompt) error
}

type ConfirmFunc func(ctx context.Context, p *Prompt) error

func (f ConfirmFunc) Confirm(ctx context.Context, p *Prompt) error {
	return f(ctx, p)
}

// AutoConfirm approves every prompt.
var AutoConfirm = ConfirmFunc(func(ctx context.Context, p *Prompt) error {
	return ctx.Err()
})
