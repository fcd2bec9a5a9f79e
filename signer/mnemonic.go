package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

type Mnemonic struct {
	MasterKey *bip32.Key
}

// NewFromSN builds the master key from hex encoded BIP-39 entropy.
func NewFromSN(SN string) (*Mnemonic, error) {
	entropy, err := hex.DecodeString(SN)
	if err != nil {
		log.Error().Msgf("NewFromSN: Error decoding entropy: %v", err)
		return nil, err
	}

	mnemonics, err := bip39.NewMnemonic(entropy)
	if err != nil {
		log.Error().Msgf("NewFromSN: Error creating mnemonics: %v", err)
		return nil, err
	}

	return newFromMnemonic(mnemonics)
}

// NewFromWords builds the master key from a BIP-39 phrase.
func NewFromWords(words string) (*Mnemonic, error) {
	words = strings.Join(strings.Fields(words), " ")
	if !bip39.IsMnemonicValid(words) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	return newFromMnemonic(words)
}

func newFromMnemonic(mnemonics string) (*Mnemonic, error) {
	seed := bip39.NewSeed(mnemonics, "")
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		log.Error().Msgf("GetMasterKey: Error creating master key: %v", err)
		return nil, err
	}

	return &Mnemonic{
		MasterKey: masterKey,
	}, nil
}

// NewEntropy returns fresh 128 bit entropy as hex and its mnemonic phrase.
func NewEntropy() (string, string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", "", err
	}
	words, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", "", err
	}
	return hex.EncodeToString(entropy), words, nil
}

// EntropyFromWords is the inverse of NewEntropy.
func EntropyFromWords(words string) (string, error) {
	words = strings.Join(strings.Fields(words), " ")
	entropy, err := bip39.EntropyFromMnemonic(words)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(entropy), nil
}

// DeriveKey derives a key from the master key using the specified path
func DeriveKey(masterKey *bip32.Key, path string) (*ecdsa.PrivateKey, error) {
	derivationPath, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	key := masterKey
	for _, n := range derivationPath {
		key, err = key.NewChildKey(n)
		if err != nil {
			return nil, err
		}
	}

	return crypto.ToECDSA(key.Key)
}

func (d *Mnemonic) GetAddresses(path_format string, start_from int, count int) ([]common.Address, []string, error) {
	addresses := []common.Address{}
	paths := []string{}

	if !strings.Contains(path_format, "%d") {
		return addresses, paths, fmt.Errorf("path_format must contain %%d")
	}

	for i := 0; i < count; i++ {
		p := fmt.Sprintf(path_format, start_from+i)

		key, err := DeriveKey(d.MasterKey, p)
		if err != nil {
			log.Error().Msgf("Error deriving key: %v", err)
			return addresses, paths, err
		}

		addresses = append(addresses, GetAddressFromKey(key))
		paths = append(paths, p)
	}

	return addresses, paths, nil
}

// Signer returns the signer for one derivation path.
func (d *Mnemonic) Signer(path string) (*MnemonicSigner, error) {
	key, err := DeriveKey(d.MasterKey, path)
	if err != nil {
		log.Error().Msgf("Signer: Failed to derive key: %v", err)
		return nil, err
	}
	return &MnemonicSigner{KeySigner: NewKeySigner(key), Path: path}, nil
}

type MnemonicSigner struct {
	*KeySigner
	Path string
}

func (s *MnemonicSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	log.Trace().Str("path", s.Path).Str("from", s.Address().Hex()).Msg("SignTx")
	return s.KeySigner.SignTx(chainID, tx)
}
