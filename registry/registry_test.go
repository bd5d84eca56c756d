package registry_test

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/permit2-distributor/ethereum"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	testutil "github.com/strangelove-ventures/permit2-distributor/test_util"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

func fakeChain(id types.ChainID, name string) *testutil.FakeChain {
	return testutil.NewFakeChain(types.ChainInfo{ChainID: id, NetworkName: name, Family: ethereum.Family})
}

func TestNew_FromConfig(t *testing.T) {
	reg, err := registry.New(map[string]types.ChainConfig{
		"sepolia": &ethereum.ChainConfig{ChainID: 11155111, RPC: "http://localhost:8545"},
		"base":    &ethereum.ChainConfig{ChainID: 8453, RPC: "http://localhost:8546", GasLimit: 200_000},
	}, log.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, []types.ChainID{8453, 11155111}, reg.ChainIDs())

	info, err := reg.Resolve(8453)
	require.NoError(t, err)
	require.Equal(t, uint64(200_000), info.GasLimit)
	require.Equal(t, "base", info.NetworkName)
	require.Equal(t, ethereum.DefaultPermit2Address, info.Permit2Address)

	_, err = reg.Resolve(1)
	require.ErrorIs(t, err, types.ErrUnsupportedChain)

	_, err = registry.New(map[string]types.ChainConfig{
		"sepolia": &ethereum.ChainConfig{ChainID: 11155111},
	}, log.NewNopLogger())
	require.Error(t, err)
}

func TestConnection_LazyAndCached(t *testing.T) {
	c := fakeChain(1, "mainnet")
	reg := registry.FromChains(log.NewNopLogger(), c)
	require.Equal(t, 0, c.InitCalls)

	for i := 0; i < 3; i++ {
		got, err := reg.Connection(context.Background(), 1)
		require.NoError(t, err)
		require.Same(t, c, got)
	}
	require.Equal(t, 1, c.InitCalls)

	_, err := reg.Connection(context.Background(), 2)
	require.ErrorIs(t, err, types.ErrUnsupportedChain)
}

func TestConnection_FailureNotCached(t *testing.T) {
	broken := fakeChain(1, "mainnet")
	broken.InitErr = errors.New("dial tcp: connection refused")
	healthy := fakeChain(10, "optimism")
	reg := registry.FromChains(log.NewNopLogger(), broken, healthy)

	_, err := reg.Connection(context.Background(), 1)
	require.ErrorIs(t, err, types.ErrProviderUnavailable)

	// A broken chain does not affect the others.
	_, err = reg.Connection(context.Background(), 10)
	require.NoError(t, err)

	broken.InitErr = nil
	_, err = reg.Connection(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, broken.InitCalls)
}

func TestClose(t *testing.T) {
	opened := fakeChain(1, "mainnet")
	idle := fakeChain(10, "optimism")
	reg := registry.FromChains(log.NewNopLogger(), opened, idle)

	_, err := reg.Connection(context.Background(), 1)
	require.NoError(t, err)
	reg.Close()
	require.True(t, opened.Closed)
	require.False(t, idle.Closed)

	// Reconnects after close.
	_, err = reg.Connection(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, opened.InitCalls)
}
