package filters_test

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/permit2-distributor/catalog"
	"github.com/strangelove-ventures/permit2-distributor/filters"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	testutil "github.com/strangelove-ventures/permit2-distributor/test_util"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

var (
	usdc = types.SupportedToken{
		Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC", Decimals: 6,
		ChainID: 1, IsActive: true, MinDistributionAmount: "1000",
	}
	dai = types.SupportedToken{
		Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Symbol: "DAI", Decimals: 18,
		ChainID: 1,
	}
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	reg := registry.FromChains(log.NewNopLogger(), testutil.NewFakeChain(types.ChainInfo{ChainID: 1}))
	c, err := catalog.New([]types.SupportedToken{usdc, dai}, reg)
	require.NoError(t, err)
	return c
}

func TestTokenActiveFilter(t *testing.T) {
	f := filters.NewTokenActiveFilter()
	require.Error(t, f.Initialize(context.Background(), map[string]interface{}{}, log.NewNopLogger()))
	require.NoError(t, f.Initialize(context.Background(), map[string]interface{}{"catalog": newCatalog(t)}, log.NewNopLogger()))

	tests := []struct {
		name     string
		token    types.SupportedToken
		filtered bool
	}{
		{"active", usdc, false},
		{"inactive", dai, true},
		{"unknown", types.SupportedToken{Address: "0x0000000000000000000000000000000000000001", ChainID: 1}, true},
		{"other chain", types.SupportedToken{Address: usdc.Address, ChainID: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, err := f.Check(context.Background(), &types.TransferRequest{Token: tt.token, Amount: "1"})
			require.NoError(t, err)
			require.Equal(t, tt.filtered, reason != "")
		})
	}
}

func TestMinDistributionFilter(t *testing.T) {
	f := filters.NewMinDistributionFilter()
	require.NoError(t, f.Initialize(context.Background(), map[string]interface{}{"catalog": newCatalog(t)}, log.NewNopLogger()))

	tests := []struct {
		name     string
		token    types.SupportedToken
		amount   string
		filtered bool
	}{
		{"at minimum", usdc, "1000", false},
		{"above minimum", usdc, "1500000", false},
		{"below minimum", usdc, "999", true},
		{"no minimum", dai, "1", false},
		{"malformed", usdc, "1e6", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, err := f.Check(context.Background(), &types.TransferRequest{Token: tt.token, Amount: tt.amount})
			require.NoError(t, err)
			require.Equal(t, tt.filtered, reason != "")
		})
	}
}

func TestMinDistributionFilter_WithoutCatalog(t *testing.T) {
	f := filters.NewMinDistributionFilter()
	require.NoError(t, f.Initialize(context.Background(), map[string]interface{}{}, log.NewNopLogger()))

	token := usdc
	token.MinDistributionAmount = "5000"
	reason, err := f.Check(context.Background(), &types.TransferRequest{Token: token, Amount: "4999"})
	require.NoError(t, err)
	require.Contains(t, reason, "min_amount=5000")
}
