package eth

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Chain is the narrow read/write surface the staking services depend on.
type Chain interface {
	// Call runs a read-only contract call against the latest block.
	Call(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error)
	// Send builds, confirms with the wallet, signs and submits a transaction.
	Send(ctx context.Context, from common.Address, to common.Address, data []byte) (*types.Transaction, error)
	// Wait blocks until the transaction is mined. A reverted receipt is an error.
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}
