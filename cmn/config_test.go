package cmn

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 18, c.TokenDecimals)
	assert.Equal(t, 5, c.DisplayPrecision)
	assert.Equal(t, 3, c.RetryAttempts)
	assert.Equal(t, time.Second, c.RetryDelay)
	assert.Equal(t, "100000000000000000000", c.MinStakeUnits().String())
	assert.NoError(t, c.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), CONFIG_NAME)
	data := `
rpc_url: https://rpc.example.org
token_address: "0x1111111111111111111111111111111111111111"
staking_address: "0x2222222222222222222222222222222222222222"
token_decimals: 6
min_stake: "250"
retry_delay: 250ms
language: zh
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.org", c.RPCURL)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), c.Token())
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), c.Staking())
	assert.Equal(t, 250*time.Millisecond, c.RetryDelay)
	assert.Equal(t, "250000000", c.MinStakeUnits().String())
	assert.Equal(t, "zh", c.Language)
	assert.Equal(t, 3, c.RetryAttempts)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), CONFIG_NAME)
	require.NoError(t, os.WriteFile(path, []byte(`token_address: "0x123"`), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`min_stake: "1.5"
token_decimals: 0`), 0600))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, os.WriteFile(path, []byte(`token_decimals: 2`), 0600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "display_precision 5 exceeds token_decimals 2")

	require.NoError(t, os.WriteFile(path, []byte(`token_decimals: 2
display_precision: 2`), 0600))
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.DisplayPrecision)
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, IsAddressShaped("0xABCDabcdABCDabcdABCDabcdABCDabcdABCD1234"))
	assert.True(t, IsAddressShaped(" 0x0000000000000000000000000000000000000000 "))
	assert.False(t, IsAddressShaped("ABCDabcdABCDabcdABCDabcdABCDabcdABCD1234"))
	assert.False(t, IsAddressShaped("0xABCD"))
	assert.False(t, IsAddressShaped("0xZZCDabcdABCDabcdABCDabcdABCDabcdABCD1234"))

	a := common.HexToAddress("0xabcdabcdabcdabcdabcdabcdabcdabcdabcd1234")
	assert.True(t, SameAddress("0xABCDABCDABCDABCDABCDABCDABCDABCDABCD1234", a))
	assert.False(t, SameAddress("0xABCD", a))
	assert.True(t, IsZeroAddress(common.Address{}))
	assert.Equal(t, a.Hex()[:6]+"...1234", ShortAddress(a))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "质押成功", TL("zh", MsgStakeSuccess))
	assert.Equal(t, "残高不足", TL("ja", MsgInsufficientBalance))
	assert.Equal(t, "Minimum stake amount is 100", TL("en", MsgMinStake, "100"))
	assert.Equal(t, "Stake failed", TL("not a language", MsgStakeFailed))
}
