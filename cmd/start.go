package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/metrics"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// chainMetrics is implemented by chain families that report head and wallet metrics.
type chainMetrics interface {
	TrackLatestBlockHeight(ctx context.Context, logger log.Logger, m *metrics.PromMetrics)
	WalletBalanceMetric(ctx context.Context, logger log.Logger, m *metrics.PromMetrics, address string)
}

func Start(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the distribution API and chain metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.Logger
			cfg := a.Config
			ctx := cmd.Context()

			port, err := cmd.Flags().GetInt16(flagMetricsPort)
			if err != nil {
				return fmt.Errorf("invalid port error=%w", err)
			}

			address, err := cmd.Flags().GetString(flagMetricsAddress)
			if err != nil {
				return fmt.Errorf("invalid address error=%w", err)
			}

			m := metrics.NewPromMetrics()
			metricsServer := m.Serve(address, port, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("Error shutting down metrics server", "error", err)
				}
			}()

			engine, err := NewEngine(ctx, cfg, logger, EngineOptions{Metrics: m})
			if err != nil {
				return err
			}
			defer engine.Close()

			// The executor key is optional here; it only feeds the wallet balance metric.
			var executorAddress string
			if hexKey := os.Getenv(ExecutorKeyEnv); hexKey != "" {
				key, err := parsePrivateKey(hexKey)
				if err != nil {
					return err
				}
				executorAddress = crypto.PubkeyToAddress(key.PublicKey).Hex()
			}

			connected := StartChainMetrics(ctx, engine, logger, m, executorAddress)
			logger.Info("Chains connected", "connected", len(connected), "configured", len(engine.Registry.ChainIDs()))

			if cfg.ValidateTokensOnStart {
				if err := engine.Catalog.Validate(ctx); err != nil {
					return fmt.Errorf("token validation failed: %w", err)
				}
				logger.Info("Validated token catalog against chain metadata")
			}

			apiServer, err := startAPI(a, engine)
			if err != nil {
				return err
			}

			// wait for context to be done
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down API server", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().String(flagMetricsAddress, "localhost", "address to serve prometheus metrics on")
	cmd.Flags().Int16(flagMetricsPort, 2112, "port to serve prometheus metrics on")

	return cmd
}

// StartChainMetrics connects every configured chain and starts its metric loops. A chain that
// cannot be reached is logged and skipped; the registry dials it again on first use. It
// returns the chains that connected.
func StartChainMetrics(ctx context.Context, engine *Engine, logger log.Logger, m *metrics.PromMetrics, executorAddress string) []types.ChainID {
	var connected []types.ChainID
	for _, id := range engine.Registry.ChainIDs() {
		c, err := engine.Registry.Connection(ctx, id)
		if err != nil {
			logger.Error("Skipping chain metrics, chain unavailable", "chain_id", id, "error", err)
			continue
		}
		connected = append(connected, id)

		chainLogger := logger.With("name", c.Name(), "chain_id", id)
		if cm, ok := c.(chainMetrics); ok {
			go cm.TrackLatestBlockHeight(ctx, chainLogger, m)
			if executorAddress != "" {
				go cm.WalletBalanceMetric(ctx, chainLogger, m, executorAddress)
			}
		}
	}
	return connected
}

const defaultAPIAddress = "localhost:8000"

func startAPI(a *AppState, engine *Engine) (*http.Server, error) {
	logger := a.Logger
	cfg := a.Config

	router, err := NewRouter(engine, cfg.API.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("unable to set trusted proxies on API server: %w", err)
	}

	addr := cfg.API.Address
	if addr == "" {
		addr = defaultAPIAddress
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Unable to start API server", "error", err)
		}
	}()
	logger.Info("API server listening", "address", addr)
	return server, nil
}
