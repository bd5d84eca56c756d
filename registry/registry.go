// Package registry resolves chain ids to chain descriptions and lazily opened connections.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

type entry struct {
	mu        sync.Mutex
	chain     types.Chain
	connected bool
}

// Registry is constructed once from configuration and shared by every component.
// The chain set is fixed after New.
type Registry struct {
	logger log.Logger
	chains map[types.ChainID]*entry
}

// New builds every configured chain without connecting to it.
func New(chains map[string]types.ChainConfig, logger log.Logger) (*Registry, error) {
	r := &Registry{
		logger: logger,
		chains: make(map[types.ChainID]*entry, len(chains)),
	}
	for name, cfg := range chains {
		c, err := cfg.Chain(name)
		if err != nil {
			return nil, fmt.Errorf("error creating chain %s: %w", name, err)
		}
		id := c.Info().ChainID
		if existing, ok := r.chains[id]; ok {
			return nil, fmt.Errorf("chains %s and %s share chain-id %d", existing.chain.Name(), name, id)
		}
		r.chains[id] = &entry{chain: c}
	}
	return r, nil
}

// FromChains registers already constructed chains.
func FromChains(logger log.Logger, chains ...types.Chain) *Registry {
	r := &Registry{
		logger: logger,
		chains: make(map[types.ChainID]*entry, len(chains)),
	}
	for _, c := range chains {
		r.chains[c.Info().ChainID] = &entry{chain: c}
	}
	return r
}

// Resolve returns the static description of a chain.
func (r *Registry) Resolve(chainID types.ChainID) (types.ChainInfo, error) {
	e, ok := r.chains[chainID]
	if !ok {
		return types.ChainInfo{}, fmt.Errorf("%w: %d", types.ErrUnsupportedChain, chainID)
	}
	return e.chain.Info(), nil
}

// ChainIDs returns the configured chain ids in ascending order.
func (r *Registry) ChainIDs() []types.ChainID {
	ids := make([]types.ChainID, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Connection returns an initialized chain, dialing it on first use. A failed dial is not
// remembered so the next call tries again. Dialing one chain does not hold up the others.
func (r *Registry) Connection(ctx context.Context, chainID types.ChainID) (types.Chain, error) {
	e, ok := r.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrUnsupportedChain, chainID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connected {
		return e.chain, nil
	}

	logger := r.logger.With("chain", e.chain.Name(), "chain_id", chainID)
	if err := e.chain.InitializeClients(ctx, logger); err != nil {
		logger.Error("Unable to connect to chain", "error", err)
		return nil, fmt.Errorf("%w: %s: %w", types.ErrProviderUnavailable, e.chain.Name(), err)
	}
	e.connected = true
	return e.chain, nil
}

// Close closes every open connection.
func (r *Registry) Close() {
	for _, e := range r.chains {
		e.mu.Lock()
		if e.connected {
			if err := e.chain.CloseClients(); err != nil {
				r.logger.Error("Error closing chain clients", "chain", e.chain.Name(), "error", err)
			}
			e.connected = false
		}
		e.mu.Unlock()
	}
}
