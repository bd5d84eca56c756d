// Package allowance reads Permit2 allowance state. Nothing is cached: the on-chain nonce
// is the only source of truth for the next permit.
package allowance

import (
	"context"
	"fmt"

	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

type Tracker struct {
	reg *registry.Registry
}

func NewTracker(reg *registry.Registry) *Tracker {
	return &Tracker{reg: reg}
}

// CurrentState returns Permit2 allowance(owner, token, spender) as of the latest block.
func (t *Tracker) CurrentState(ctx context.Context, token, owner, spender string, chainID types.ChainID) (types.AllowanceState, error) {
	chain, err := t.reg.Connection(ctx, chainID)
	if err != nil {
		return types.AllowanceState{}, err
	}
	state, err := chain.ReadAllowance(ctx, owner, token, spender)
	if err != nil {
		return types.AllowanceState{}, fmt.Errorf("%w: owner %s token %s spender %s on chain %d: %w",
			types.ErrAllowanceFetch, owner, token, spender, chainID, err)
	}
	return state, nil
}
