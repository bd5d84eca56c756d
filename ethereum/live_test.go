package ethereum_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/ethereum"
	testutil "github.com/strangelove-ventures/permit2-distributor/test_util"
)

// Reads a Permit2 allowance and USDC metadata from Sepolia.
func TestLivePermit2Allowance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live rpc test in short mode")
	}

	cfg := &ethereum.ChainConfig{
		ChainID: 11155111,
		RPC:     testutil.GetEnvOrDefault("SEPOLIA_RPC", "https://ethereum-sepolia-rpc.publicnode.com"),
	}
	c, err := cfg.Chain("sepolia")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.InitializeClients(ctx, log.NewNopLogger()))
	defer c.CloseClients()

	state, err := c.ReadAllowance(ctx, testOwner, testutil.SepoliaUSDC, testSpender)
	require.NoError(t, err)
	require.NotNil(t, state.Amount)

	md, err := c.ReadMetadata(ctx, testutil.SepoliaUSDC)
	require.NoError(t, err)
	require.Equal(t, uint8(6), md.Decimals)
}
