package ethereum

import (
	"context"
	"math/big"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/metrics"
)

const (
	defaultMetricsDenom    = "ETH"
	defaultMetricsExponent = 18
)

// TrackLatestBlockHeight polls the head block and reports it as a metric
func (e *Ethereum) TrackLatestBlockHeight(
	ctx context.Context,
	logger log.Logger,
	m *metrics.PromMetrics,
) {
	ticker := time.NewTicker(6 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			head, err := e.HeadBlock(ctx)
			if err != nil {
				logger.Error("Failed to get head block", "error", err)
				continue
			}
			m.SetLatestHeight(e.info.MetricsLabel(), e.info.ChainID.String(), int64(head))
		}
	}
}

// WalletBalanceMetric tracks the native balance of the executor wallet so it can be topped
// up before gas runs out.
func (e *Ethereum) WalletBalanceMetric(
	ctx context.Context,
	logger log.Logger,
	m *metrics.PromMetrics,
	address string,
) {
	if m == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	denom, exponent := e.metricsDenom()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			balance, err := e.ReadNativeBalance(ctx, address)
			if err != nil {
				logger.Error("Failed to get wallet balance", "error", err)
				continue
			}
			m.SetWalletBalance(e.info.MetricsLabel(), address, denom, scaleDown(balance, exponent))
		}
	}
}

func (e *Ethereum) metricsDenom() (string, int) {
	denom, exponent := e.MetricsDenom, e.MetricsExponent
	if denom == "" {
		denom = defaultMetricsDenom
	}
	if exponent <= 0 {
		exponent = defaultMetricsExponent
	}
	return denom, exponent
}

// scaleDown converts an integer amount to whole units for display.
func scaleDown(v *big.Int, exponent int) float64 {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exponent)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), scale).Float64()
	return f
}
