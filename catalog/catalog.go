// Package catalog holds the supported token set. Entries are loaded once and never change.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cosmossdk.io/math"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

type Catalog struct {
	reg    *registry.Registry
	tokens map[types.TokenKey]types.SupportedToken
}

// New validates tokens and indexes them by (normalized address, chain id).
func New(tokens []types.SupportedToken, reg *registry.Registry) (*Catalog, error) {
	c := &Catalog{
		reg:    reg,
		tokens: make(map[types.TokenKey]types.SupportedToken, len(tokens)),
	}
	for _, t := range tokens {
		if types.NormalizeAddress(t.Address) == "" {
			return nil, fmt.Errorf("token %s: invalid address %q", t.Symbol, t.Address)
		}
		if t.Decimals > types.MaxTokenDecimals {
			return nil, fmt.Errorf("token %s: decimals %d exceeds %d", t.Symbol, t.Decimals, types.MaxTokenDecimals)
		}
		if t.MinDistributionAmount != "" {
			if _, err := amount.ParseBaseUnits(t.MinDistributionAmount); err != nil {
				return nil, fmt.Errorf("token %s: min-distribution-amount: %w", t.Symbol, err)
			}
		}
		if _, err := reg.Resolve(t.ChainID); err != nil {
			return nil, fmt.Errorf("token %s: %w", t.Symbol, err)
		}
		key := t.Key()
		if _, ok := c.tokens[key]; ok {
			return nil, fmt.Errorf("duplicate token %s", key)
		}
		t.Address = key.Address
		c.tokens[key] = t
	}
	return c, nil
}

// Get looks a token up case-insensitively.
func (c *Catalog) Get(address string, chainID types.ChainID) (types.SupportedToken, error) {
	t, ok := c.tokens[types.NewTokenKey(address, chainID)]
	if !ok {
		return types.SupportedToken{}, fmt.Errorf("%w: %s on chain %d", types.ErrUnknownToken, address, chainID)
	}
	return t, nil
}

// Active lists the active tokens of a chain sorted by symbol.
func (c *Catalog) Active(chainID types.ChainID) []types.SupportedToken {
	var out []types.SupportedToken
	for _, t := range c.tokens {
		if t.ChainID == chainID && t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol == out[j].Symbol {
			return out[i].Address < out[j].Address
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// FetchOnChainMetadata reads decimals, symbol and name from the token contract. Any read
// failure yields ErrTokenMetadataUnavailable; partial metadata is never returned.
func (c *Catalog) FetchOnChainMetadata(ctx context.Context, address string, chainID types.ChainID) (types.TokenMetadata, error) {
	chain, err := c.reg.Connection(ctx, chainID)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	md, err := chain.ReadMetadata(ctx, address)
	if err != nil {
		return types.TokenMetadata{}, fmt.Errorf("%w: %s on chain %d: %w", types.ErrTokenMetadataUnavailable, address, chainID, err)
	}
	return md, nil
}

// Validate checks the declared decimals of every active token against the chain.
func (c *Catalog) Validate(ctx context.Context) error {
	var errs error
	for key, t := range c.tokens {
		if !t.IsActive {
			continue
		}
		md, err := c.FetchOnChainMetadata(ctx, t.Address, t.ChainID)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if md.Decimals != t.Decimals {
			errs = errors.Join(errs, fmt.Errorf("token %s (%s): configured decimals %d, on-chain %d", t.Symbol, key, t.Decimals, md.Decimals))
		}
	}
	return errs
}

// BalanceOf returns the owner's token balance in base units.
func (c *Catalog) BalanceOf(ctx context.Context, address string, chainID types.ChainID, owner string) (string, error) {
	t, err := c.Get(address, chainID)
	if err != nil {
		return "", err
	}
	chain, err := c.reg.Connection(ctx, chainID)
	if err != nil {
		return "", err
	}
	balance, err := chain.ReadBalance(ctx, t.Address, owner)
	if err != nil {
		return "", fmt.Errorf("%w: balance of %s: %w", types.ErrProviderUnavailable, owner, err)
	}
	return balance.String(), nil
}

// MinDistribution returns the token's configured minimum, zero when unset.
func MinDistribution(t types.SupportedToken) math.Int {
	if t.MinDistributionAmount == "" {
		return math.ZeroInt()
	}
	v, err := amount.ParseBaseUnits(t.MinDistributionAmount)
	if err != nil {
		return math.ZeroInt()
	}
	return v
}
