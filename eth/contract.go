package eth

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// Contract binds an ABI to an address on a Chain.
type Contract struct {
	Name    string
	Address common.Address
	ABI     *abi.ABI
	chain   Chain
}

func NewContract(chain Chain, name string, address common.Address, a *abi.ABI) *Contract {
	return &Contract{
		Name:    name,
		Address: address,
		ABI:     a,
		chain:   chain,
	}
}

func NewERC20(chain Chain, address common.Address) *Contract {
	return NewContract(chain, "Token", address, &ERC20)
}

func NewStaking(chain Chain, address common.Address) *Contract {
	return NewContract(chain, "Staking", address, &STAKING)
}

// Call packs the method, calls the contract and unpacks the result into out.
func (c *Contract) Call(ctx context.Context, from common.Address, out interface{}, method string, args ...interface{}) error {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		log.Error().Msgf("%s.%s: Cannot pack data. Error:(%v)", c.Name, method, err)
		return err
	}

	output, err := c.chain.Call(ctx, from, c.Address, data)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}

	err = c.ABI.UnpackIntoInterface(out, method, output)
	if err != nil {
		log.Error().Msgf("%s.%s: Cannot unpack data. Error:(%v)", c.Name, method, err)
		return fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}

	return nil
}

// Send packs the method and submits it as a transaction from the given account.
func (c *Contract) Send(ctx context.Context, from common.Address, method string, args ...interface{}) (*types.Transaction, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		log.Error().Msgf("%s.%s: Cannot pack data. Error:(%v)", c.Name, method, err)
		return nil, err
	}

	tx, err := c.chain.Send(ctx, from, c.Address, data)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}

	return tx, nil
}

func (c *Contract) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return c.chain.Wait(ctx, tx)
}

// Deployed reports whether there is code at the contract address.
func (c *Contract) Deployed(ctx context.Context) (bool, error) {
	code, err := c.chain.CodeAt(ctx, c.Address)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}
