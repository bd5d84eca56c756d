package catalog_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/permit2-distributor/catalog"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	testutil "github.com/strangelove-ventures/permit2-distributor/test_util"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

const (
	usdc  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	weth  = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	owner = "0x00000000000000000000000000000000000000aa"
)

func setup(t *testing.T) (*catalog.Catalog, *testutil.FakeChain) {
	t.Helper()
	chain := testutil.NewFakeChain(types.ChainInfo{ChainID: 1, NetworkName: "mainnet"})
	reg := registry.FromChains(log.NewNopLogger(), chain)
	c, err := catalog.New([]types.SupportedToken{
		{Address: usdc, Symbol: "USDC", Name: "USD Coin", Decimals: 6, ChainID: 1, IsActive: true, MinDistributionAmount: "1000"},
		{Address: weth, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18, ChainID: 1},
	}, reg)
	require.NoError(t, err)
	return c, chain
}

func TestGet_CaseInsensitive(t *testing.T) {
	c, _ := setup(t)

	for _, addr := range []string{usdc, strings.ToLower(usdc), "0X" + strings.ToUpper(usdc[2:])} {
		tok, err := c.Get(addr, 1)
		require.NoError(t, err, addr)
		require.Equal(t, "USDC", tok.Symbol)
		require.Equal(t, uint8(6), tok.Decimals)
	}

	_, err := c.Get(usdc, 10)
	require.ErrorIs(t, err, types.ErrUnknownToken)
	_, err = c.Get("0x0000000000000000000000000000000000000001", 1)
	require.ErrorIs(t, err, types.ErrUnknownToken)
}

func TestNew_Invalid(t *testing.T) {
	reg := registry.FromChains(log.NewNopLogger(), testutil.NewFakeChain(types.ChainInfo{ChainID: 1}))
	tests := []struct {
		name  string
		token types.SupportedToken
	}{
		{"bad address", types.SupportedToken{Address: "usdc", ChainID: 1}},
		{"decimals above 18", types.SupportedToken{Address: usdc, Decimals: 19, ChainID: 1}},
		{"bad min amount", types.SupportedToken{Address: usdc, ChainID: 1, MinDistributionAmount: "1.5"}},
		{"unknown chain", types.SupportedToken{Address: usdc, ChainID: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New([]types.SupportedToken{tt.token}, reg)
			require.Error(t, err)
		})
	}

	_, err := catalog.New([]types.SupportedToken{
		{Address: usdc, ChainID: 1},
		{Address: strings.ToLower(usdc), ChainID: 1},
	}, reg)
	require.ErrorContains(t, err, "duplicate")
}

func TestActive(t *testing.T) {
	c, _ := setup(t)
	active := c.Active(1)
	require.Len(t, active, 1)
	require.Equal(t, "USDC", active[0].Symbol)
	require.Empty(t, c.Active(10))
}

func TestFetchOnChainMetadata(t *testing.T) {
	c, chain := setup(t)
	chain.Metadata[strings.ToLower(usdc)] = types.TokenMetadata{Decimals: 6, Symbol: "USDC", Name: "USD Coin"}

	md, err := c.FetchOnChainMetadata(context.Background(), usdc, 1)
	require.NoError(t, err)
	require.Equal(t, "USD Coin", md.Name)

	_, err = c.FetchOnChainMetadata(context.Background(), weth, 1)
	require.ErrorIs(t, err, types.ErrTokenMetadataUnavailable)

	_, err = c.FetchOnChainMetadata(context.Background(), usdc, 5)
	require.ErrorIs(t, err, types.ErrUnsupportedChain)
}

func TestValidate(t *testing.T) {
	c, chain := setup(t)
	chain.Metadata[strings.ToLower(usdc)] = types.TokenMetadata{Decimals: 6, Symbol: "USDC", Name: "USD Coin"}
	// WETH is inactive so its missing metadata is ignored.
	require.NoError(t, c.Validate(context.Background()))

	chain.Metadata[strings.ToLower(usdc)] = types.TokenMetadata{Decimals: 18, Symbol: "USDC", Name: "USD Coin"}
	err := c.Validate(context.Background())
	require.ErrorContains(t, err, "configured decimals 6, on-chain 18")
}

func TestBalanceOf(t *testing.T) {
	c, chain := setup(t)
	chain.SetBalance(usdc, owner, big.NewInt(2_500_000))

	bal, err := c.BalanceOf(context.Background(), usdc, 1, owner)
	require.NoError(t, err)
	require.Equal(t, "2500000", bal)

	_, err = c.BalanceOf(context.Background(), "0x0000000000000000000000000000000000000001", 1, owner)
	require.ErrorIs(t, err, types.ErrUnknownToken)
}

func TestMinDistribution(t *testing.T) {
	c, _ := setup(t)
	tok, err := c.Get(usdc, 1)
	require.NoError(t, err)
	require.Equal(t, "1000", catalog.MinDistribution(tok).String())

	tok, err = c.Get(weth, 1)
	require.NoError(t, err)
	require.True(t, catalog.MinDistribution(tok).IsZero())
}
