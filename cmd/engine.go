package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/allowance"
	"github.com/strangelove-ventures/permit2-distributor/catalog"
	"github.com/strangelove-ventures/permit2-distributor/filters"
	"github.com/strangelove-ventures/permit2-distributor/ledger"
	"github.com/strangelove-ventures/permit2-distributor/metrics"
	"github.com/strangelove-ventures/permit2-distributor/monitor"
	"github.com/strangelove-ventures/permit2-distributor/permit"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/transfer"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// Engine holds the components built from one config.
type Engine struct {
	Registry *registry.Registry
	Catalog  *catalog.Catalog
	Tracker  *allowance.Tracker
	Builder  *permit.Builder
	Executor *transfer.Executor
	Batch    *transfer.Batch
	Monitor  *monitor.Monitor
	Ledger   types.Ledger
	Filters  *types.FilterRegistry
	Metrics  *metrics.PromMetrics

	logger log.Logger
}

type EngineOptions struct {
	// TrustedSigning allows the permit builder to sign with a locally held owner key.
	TrustedSigning bool
	Metrics        *metrics.PromMetrics
}

// NewEngine wires the registry, catalog and transfer pipeline for cfg. Chains are connected
// lazily on first use.
func NewEngine(ctx context.Context, cfg *types.Config, logger log.Logger, opts EngineOptions) (*Engine, error) {
	reg, err := registry.New(cfg.Chains, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating chain registry: %w", err)
	}
	return NewEngineFromRegistry(ctx, cfg, reg, logger, opts)
}

// NewEngineFromRegistry wires the engine around an existing registry.
func NewEngineFromRegistry(ctx context.Context, cfg *types.Config, reg *registry.Registry, logger log.Logger, opts EngineOptions) (*Engine, error) {
	cat, err := catalog.New(cfg.Tokens, reg)
	if err != nil {
		return nil, fmt.Errorf("error loading token catalog: %w", err)
	}

	filterRegistry, err := initializeFilters(ctx, cfg, logger, cat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filters: %w", err)
	}

	ldg, err := ledger.New(cfg.Ledger, logger)
	if err != nil {
		_ = filterRegistry.Close()
		return nil, fmt.Errorf("error opening ledger: %w", err)
	}

	tracker := allowance.NewTracker(reg)
	builderOpts := []permit.Option{permit.WithLogger(logger)}
	if opts.TrustedSigning {
		builderOpts = append(builderOpts, permit.WithTrustedSigning())
	}
	exec := transfer.NewExecutor(reg, logger, transfer.WithMetrics(opts.Metrics))

	return &Engine{
		Registry: reg,
		Catalog:  cat,
		Tracker:  tracker,
		Builder:  permit.NewBuilder(reg, tracker, builderOpts...),
		Executor: exec,
		Batch:    transfer.NewBatch(exec, filterRegistry, ldg, opts.Metrics, logger),
		Monitor:  monitor.New(reg, logger),
		Ledger:   ldg,
		Filters:  filterRegistry,
		Metrics:  opts.Metrics,
		logger:   logger,
	}, nil
}

// Close releases chain connections, filters and the ledger.
func (e *Engine) Close() {
	e.Registry.Close()
	if err := e.Filters.Close(); err != nil {
		e.logger.Error("Error closing filters", "error", err)
	}
	if c, ok := e.Ledger.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.logger.Error("Error closing ledger", "error", err)
		}
	}
}

// initializeFilters creates and initializes the filter registry with configured filters
func initializeFilters(ctx context.Context, cfg *types.Config, logger log.Logger, cat *catalog.Catalog) (*types.FilterRegistry, error) {
	filterRegistry := types.NewFilterRegistry(logger)

	// Register base filters as plugins
	tokenActiveFilter := filters.NewTokenActiveFilter()
	if err := tokenActiveFilter.Initialize(ctx, map[string]interface{}{
		"catalog": cat,
	}, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize token-active filter: %w", err)
	}
	if err := filterRegistry.Register(tokenActiveFilter); err != nil {
		return nil, err
	}

	minDistributionFilter := filters.NewMinDistributionFilter()
	if err := minDistributionFilter.Initialize(ctx, map[string]interface{}{
		"catalog": cat,
	}, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize min-distribution filter: %w", err)
	}
	if err := filterRegistry.Register(minDistributionFilter); err != nil {
		return nil, err
	}

	// Register user-configured filters from config
	for _, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			logger.Debug("Skipping disabled filter", "name", filterCfg.Name)
			continue
		}

		var filter types.TransferFilter
		switch filterCfg.Name {
		case "recipient-whitelist":
			filter = filters.NewRecipientWhitelistFilter()
		default:
			logger.Info("Unknown filter type, skipping", "name", filterCfg.Name)
			continue
		}

		if err := filter.Initialize(ctx, filterCfg.Config, logger); err != nil {
			_ = filterRegistry.Close()
			return nil, fmt.Errorf("failed to initialize filter %s: %w", filterCfg.Name, err)
		}

		if err := filterRegistry.Register(filter); err != nil {
			_ = filter.Close()
			_ = filterRegistry.Close()
			return nil, err
		}
		logger.Info("Registered custom filter", "name", filterCfg.Name)
	}

	logger.Debug("Transfer filters ready", "order", filterRegistry.Names())
	return filterRegistry, nil
}

// executorKey reads the executor key from --key, falling back to EXECUTOR_PRIV_KEY.
func executorKey(cmd *cobra.Command) (*ecdsa.PrivateKey, error) {
	hexKey, err := cmd.Flags().GetString(flagKey)
	if err != nil {
		return nil, err
	}
	if hexKey == "" {
		hexKey = os.Getenv(ExecutorKeyEnv)
	}
	if hexKey == "" {
		return nil, fmt.Errorf("no executor key: use --%s or set %s", flagKey, ExecutorKeyEnv)
	}
	return parsePrivateKey(hexKey)
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %w", types.ErrSigning, err)
	}
	return key, nil
}
