package staking

import (
	"context"
	"testing"

	"github.com/AlexNa-Holdings/web3stake/cmn"
	"github.com/AlexNa-Holdings/web3stake/eth/ethtest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasBoundReferrer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	has, err := f.s.HasBoundReferrer(ctx, user)
	require.NoError(t, err)
	assert.False(t, has)

	f.chain.BindReferrer(user, bound)
	has, err = f.s.HasBoundReferrer(ctx, user)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestValidateReferrerAddress(t *testing.T) {
	assert.True(t, ValidateReferrerAddress(user, referrer.Hex()))
	assert.True(t, ValidateReferrerAddress(user, "0xabcdabcdabcdabcdabcdabcdabcdabcdabcd1234"))
	assert.False(t, ValidateReferrerAddress(user, user.Hex()))
	assert.False(t, ValidateReferrerAddress(user, "0x0000000000000000000000000000000000000000"))
	assert.False(t, ValidateReferrerAddress(user, "0xabcd"))
	assert.False(t, ValidateReferrerAddress(user, ""))
}

func TestIsReferrerActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	active, err := f.s.IsReferrerActive(ctx, referrer)
	require.NoError(t, err)
	assert.False(t, active)

	f.chain.AddStake(referrer, ethtest.Stake{Amount: ethtest.Tokens(100), Active: false})
	active, err = f.s.IsReferrerActive(ctx, referrer)
	require.NoError(t, err)
	assert.False(t, active)

	f.chain.AddStake(referrer, ethtest.Stake{Amount: ethtest.Tokens(100), Active: true})
	active, err = f.s.IsReferrerActive(ctx, referrer)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestStakeWithInactiveReferrerIsAccepted(t *testing.T) {
	f := setup(t)
	f.chain.SetBalance(user, ethtest.Tokens(100))

	assert.True(t, f.s.Stake(context.Background(), user, "100", referrer.Hex(), Callbacks{}))
	assert.Equal(t, referrer, f.chain.User(user).Referrer)
}

func TestResolveReferrer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.s.ResolveReferrer(ctx, user, " "+referrer.Hex()+" ")
	require.NoError(t, err)
	assert.Equal(t, referrer, r.Effective)
	assert.False(t, r.Bound)
	assert.False(t, r.Conflict)

	_, err = f.s.ResolveReferrer(ctx, user, "")
	assert.ErrorIs(t, err, cmn.ErrReferrerRequired)
	_, err = f.s.ResolveReferrer(ctx, user, "nope")
	assert.ErrorIs(t, err, cmn.ErrInvalidReferrer)
	_, err = f.s.ResolveReferrer(ctx, user, user.Hex())
	assert.ErrorIs(t, err, cmn.ErrSelfReferral)

	f.chain.BindReferrer(user, bound)

	r, err = f.s.ResolveReferrer(ctx, user, "")
	require.NoError(t, err)
	assert.Equal(t, bound, r.Effective)
	assert.True(t, r.Bound)
	assert.False(t, r.Conflict)

	r, err = f.s.ResolveReferrer(ctx, user, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.False(t, r.Conflict)

	r, err = f.s.ResolveReferrer(ctx, user, referrer.Hex())
	require.NoError(t, err)
	assert.Equal(t, bound, r.Effective)
	assert.True(t, r.Conflict)

	// garbage input is ignored once a referrer is bound
	r, err = f.s.ResolveReferrer(ctx, user, "garbage")
	require.NoError(t, err)
	assert.Equal(t, bound, r.Effective)
	assert.True(t, r.Conflict)
}

func TestReferrerFromURL(t *testing.T) {
	a := "0xABCDabcdABCDabcdABCDabcdABCDabcdABCD1234"
	cases := map[string]string{
		"https://mutualbank.app/stake?ref=" + a:         a,
		"https://mutualbank.app/#/stake?ref=" + a:       a,
		"https://mutualbank.app/stake?lang=zh&ref=" + a: a,
		a:                                       a,
		"https://mutualbank.app/stake":          "",
		"https://mutualbank.app/stake?ref=0x12": "",
		"%%%":                                   "",
		"":                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ReferrerFromURL(in), in)
	}
}

func TestReferralLink(t *testing.T) {
	a := common.HexToAddress("0xabcdabcdabcdabcdabcdabcdabcdabcdabcd1234")
	link := ReferralLink("https://mutualbank.app/", a)
	assert.Equal(t, "https://mutualbank.app/stake?ref="+a.Hex(), link)
	assert.Equal(t, a.Hex(), ReferrerFromURL(link))
}
