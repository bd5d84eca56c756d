package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics is safe to use as a nil pointer; every setter is then a no-op.
type PromMetrics struct {
	Registry *prometheus.Registry

	WalletBalance   *prometheus.GaugeVec
	LatestHeight    *prometheus.GaugeVec
	BroadcastErrors *prometheus.CounterVec
	Allowance       *prometheus.GaugeVec
	TransferTotal   *prometheus.CounterVec
	GasUsed         *prometheus.HistogramVec
	BatchItems      *prometheus.CounterVec
}

func NewPromMetrics() *PromMetrics {
	reg := prometheus.NewRegistry()

	// labels
	var (
		walletLabels         = []string{"chain", "address", "denom"}
		heightLabels         = []string{"chain", "chain_id"}
		broadcastErrorLabels = []string{"chain", "chain_id", "call"}
		allowanceLabels      = []string{"chain", "token", "owner"}
		transferLabels       = []string{"chain", "token", "status"}
		gasLabels            = []string{"chain", "call"}
		batchLabels          = []string{"result"}
	)

	m := &PromMetrics{
		Registry: reg,
		WalletBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "permit2_distributor_wallet_balance",
			Help: "The current native balance of the executor wallet",
		}, walletLabels),
		LatestHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "permit2_distributor_chain_latest_height",
			Help: "The current height of the chain",
		}, heightLabels),
		BroadcastErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit2_distributor_broadcast_errors_total",
			Help: "The total number of transactions the node rejected before inclusion",
		}, broadcastErrorLabels),
		Allowance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "permit2_distributor_permit2_allowance",
			Help: "Last observed Permit2 allowance in base units for an owner and token",
		}, allowanceLabels),
		TransferTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit2_distributor_transfer_total",
			Help: "Transfer outcomes: success, failed, rejected, filtered",
		}, transferLabels),
		GasUsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permit2_distributor_gas_used",
			Help:    "Gas used by mined permit and transferFrom calls",
			Buckets: prometheus.LinearBuckets(20_000, 20_000, 10),
		}, gasLabels),
		BatchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit2_distributor_batch_items_total",
			Help: "Batch items by result: success or failed",
		}, batchLabels),
	}

	reg.MustRegister(m.WalletBalance)
	reg.MustRegister(m.LatestHeight)
	reg.MustRegister(m.BroadcastErrors)
	reg.MustRegister(m.Allowance)
	reg.MustRegister(m.TransferTotal)
	reg.MustRegister(m.GasUsed)
	reg.MustRegister(m.BatchItems)

	return m
}

// Serve exposes /metrics on address:port in the background.
func (m *PromMetrics) Serve(address string, port int16, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", address, port),
		Handler:     mux,
		ReadTimeout: 3 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
	return server
}

func (m *PromMetrics) SetWalletBalance(chain, address, denom string, balance float64) {
	if m == nil {
		return
	}
	m.WalletBalance.WithLabelValues(chain, address, denom).Set(balance)
}

func (m *PromMetrics) SetLatestHeight(chain, chainID string, height int64) {
	if m == nil {
		return
	}
	m.LatestHeight.WithLabelValues(chain, chainID).Set(float64(height))
}

func (m *PromMetrics) IncBroadcastErrors(chain, chainID, call string) {
	if m == nil {
		return
	}
	m.BroadcastErrors.WithLabelValues(chain, chainID, call).Inc()
}

func (m *PromMetrics) SetAllowance(chain, token, owner string, allowance float64) {
	if m == nil {
		return
	}
	m.Allowance.WithLabelValues(chain, token, owner).Set(allowance)
}

func (m *PromMetrics) IncTransfer(chain, token, status string) {
	if m == nil {
		return
	}
	m.TransferTotal.WithLabelValues(chain, token, status).Inc()
}

func (m *PromMetrics) ObserveGasUsed(chain, call string, gas uint64) {
	if m == nil {
		return
	}
	m.GasUsed.WithLabelValues(chain, call).Observe(float64(gas))
}

func (m *PromMetrics) AddBatchItems(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BatchItems.WithLabelValues(result).Add(float64(n))
}
