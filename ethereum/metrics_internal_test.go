package ethereum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScaleDown(t *testing.T) {
	require.InDelta(t, 0.5, scaleDown(big.NewInt(5e17), 18), 1e-12)
	require.InDelta(t, 1.5, scaleDown(big.NewInt(1_500_000), 6), 1e-12)
	require.Zero(t, scaleDown(big.NewInt(0), 18))
}

func TestMetricsDenom(t *testing.T) {
	e := NewChain("base", (&ChainConfig{ChainID: 8453, RPC: "http://localhost"}).Info(), "", 0)
	denom, exp := e.metricsDenom()
	require.Equal(t, "ETH", denom)
	require.Equal(t, 18, exp)

	e = NewChain("polygon", (&ChainConfig{ChainID: 137, RPC: "http://localhost"}).Info(), "POL", 18)
	denom, _ = e.metricsDenom()
	require.Equal(t, "POL", denom)
}
