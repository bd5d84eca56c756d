// Package permit builds Permit2 PermitSingle packages for owners to sign.
package permit

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/strangelove-ventures/permit2-distributor/allowance"
	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// MaxAllowanceAmount is the largest uint160, the width of a Permit2 allowance.
var MaxAllowanceAmount = math.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1)))

// MaxUint48 bounds Permit2 expirations and nonces.
const MaxUint48 = 1<<48 - 1

type Option func(*Builder)

// WithTrustedSigning enables SignWithKey. Only service-held keys should reach a builder
// constructed with this option.
func WithTrustedSigning() Option {
	return func(b *Builder) {
		b.trusted = true
	}
}

func WithLogger(logger log.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

type Builder struct {
	reg     *registry.Registry
	tracker *allowance.Tracker
	trusted bool
	logger  log.Logger
}

func NewBuilder(reg *registry.Registry, tracker *allowance.Tracker, opts ...Option) *Builder {
	b := &Builder{
		reg:     reg,
		tracker: tracker,
		logger:  log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildUnsigned reads the current Permit2 nonce and assembles an unsigned permit for
// amount (base units) of token. The permit's allowance expires at deadline.
func (b *Builder) BuildUnsigned(ctx context.Context, token types.SupportedToken, owner, spender, amt string, deadline uint64) (types.PermitPackage, error) {
	if _, err := b.reg.Resolve(token.ChainID); err != nil {
		return types.PermitPackage{}, err
	}

	value, err := amount.ParseBaseUnits(amt)
	if err != nil {
		return types.PermitPackage{}, err
	}
	if !value.IsPositive() {
		return types.PermitPackage{}, fmt.Errorf("%w: amount must be positive", types.ErrInvalidAmount)
	}
	if value.GT(MaxAllowanceAmount) {
		return types.PermitPackage{}, fmt.Errorf("%w: amount %s exceeds uint160", types.ErrInvalidAmount, amt)
	}
	if deadline == 0 || deadline > MaxUint48 {
		return types.PermitPackage{}, fmt.Errorf("%w: deadline %d out of uint48 range", types.ErrInvalidAmount, deadline)
	}

	ownerAddr := types.NormalizeAddress(owner)
	if ownerAddr == "" {
		return types.PermitPackage{}, fmt.Errorf("invalid owner address %q", owner)
	}
	spenderAddr := types.NormalizeAddress(spender)
	if spenderAddr == "" {
		return types.PermitPackage{}, fmt.Errorf("invalid spender address %q", spender)
	}

	state, err := b.tracker.CurrentState(ctx, token.Address, ownerAddr, spenderAddr, token.ChainID)
	if err != nil {
		return types.PermitPackage{}, err
	}
	if state.Nonce > MaxUint48 {
		return types.PermitPackage{}, fmt.Errorf("%w: nonce %d exhausted", types.ErrAllowanceFetch, state.Nonce)
	}

	pkg := types.PermitPackage{
		ChainID: token.ChainID,
		Owner:   ownerAddr,
		Details: types.PermitDetails{
			Token:      types.NormalizeAddress(token.Address),
			Amount:     value.String(),
			Expiration: deadline,
			Nonce:      state.Nonce,
		},
		Spender:  spenderAddr,
		Deadline: deadline,
	}
	b.logger.Debug("Built permit", "owner", ownerAddr, "token", pkg.Details.Token, "nonce", state.Nonce, "chain_id", token.ChainID)
	return pkg, nil
}

// SignWithKey signs pkg with key. It refuses unless the builder was created with
// WithTrustedSigning, and when key does not belong to the permit owner.
func (b *Builder) SignWithKey(_ context.Context, pkg types.PermitPackage, key *ecdsa.PrivateKey, chainID types.ChainID) (types.PermitPackage, error) {
	if !b.trusted {
		return types.PermitPackage{}, fmt.Errorf("%w: local key signing is disabled", types.ErrSigning)
	}
	if key == nil {
		return types.PermitPackage{}, fmt.Errorf("%w: signing key required", types.ErrSigning)
	}
	if pkg.ChainID != chainID {
		return types.PermitPackage{}, fmt.Errorf("%w: permit is for chain %d, not %d", types.ErrSigning, pkg.ChainID, chainID)
	}
	info, err := b.reg.Resolve(chainID)
	if err != nil {
		return types.PermitPackage{}, err
	}

	signer := crypto.PubkeyToAddress(key.PublicKey)
	if !strings.EqualFold(signer.Hex(), pkg.Owner) {
		return types.PermitPackage{}, fmt.Errorf("%w: key %s is not the permit owner %s", types.ErrSigning, signer.Hex(), pkg.Owner)
	}

	digest, err := Digest(pkg, info)
	if err != nil {
		return types.PermitPackage{}, fmt.Errorf("%w: %w", types.ErrSigning, err)
	}
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return types.PermitPackage{}, fmt.Errorf("%w: %w", types.ErrSigning, err)
	}
	// Permit2 verifies with ecrecover, which expects v in {27, 28}.
	signature[64] += 27

	signed := pkg
	signed.Signature = signature
	return signed, nil
}
