package signer

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
)

type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: GetAddressFromKey(key),
	}
}

// NewKeySignerFromHex accepts a hex private key with or without the 0x prefix.
func NewKeySignerFromHex(s string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, errors.New("invalid private key")
	}
	return NewKeySigner(key), nil
}

func (k *KeySigner) Address() common.Address {
	return k.address
}

func (k *KeySigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), k.key)
	if err != nil {
		log.Error().Msgf("SignTx: Failed to sign transaction: %v", err)
		return nil, err
	}
	return signedTx, nil
}

// GetAddressFromKey generates an Ethereum address from the private key
func GetAddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
