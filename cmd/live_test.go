package cmd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/permit2-distributor/cmd"
	testutil "github.com/strangelove-ventures/permit2-distributor/test_util"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// Validates the catalog and reads allowance and status from the public testnets.
func TestLiveEngine(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live rpc test in short mode")
	}

	a, reg := testutil.ConfigSetup(t)
	ctx := context.Background()

	engine, err := cmd.NewEngineFromRegistry(ctx, a.Config, reg, a.Logger, cmd.EngineOptions{})
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Catalog.Validate(ctx))

	state, err := engine.Tracker.CurrentState(ctx, testutil.SepoliaUSDC, owner, spender, 11155111)
	require.NoError(t, err)
	require.NotNil(t, state.Amount)

	status, err := engine.Monitor.Status(ctx, "0x0000000000000000000000000000000000000000000000000000000000000001", 84532)
	require.NoError(t, err)
	require.Equal(t, types.TxFailed, status.State)
	require.Equal(t, types.ErrTransactionNotFound.Error(), status.Reason)
}
