package filters

import (
	"context"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/catalog"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// MinDistributionFilter filters transfers below the token's min-distribution-amount.
// A catalog, when configured, is the source of the minimum; otherwise the request's own
// token entry is used.
type MinDistributionFilter struct {
	catalog *catalog.Catalog
	logger  log.Logger
}

func NewMinDistributionFilter() *MinDistributionFilter {
	return &MinDistributionFilter{}
}

func (f *MinDistributionFilter) Name() string {
	return "min-distribution"
}

func (f *MinDistributionFilter) Initialize(ctx context.Context, config map[string]interface{}, logger log.Logger) error {
	f.logger = logger
	if catalogRaw, ok := config["catalog"]; ok {
		c, ok := catalogRaw.(*catalog.Catalog)
		if !ok {
			return fmt.Errorf("catalog has invalid type")
		}
		f.catalog = c
	}
	logger.Info("Min distribution filter initialized", "catalog", f.catalog != nil)
	return nil
}

func (f *MinDistributionFilter) Check(_ context.Context, req *types.TransferRequest) (string, error) {
	value, err := amount.ParseBaseUnits(req.Amount)
	if err != nil {
		return fmt.Sprintf("not a valid amount: %v", err), nil
	}

	minAmount := f.getMinAmount(req.Token)
	if minAmount.IsZero() || !value.LT(minAmount) {
		return "", nil
	}
	return fmt.Sprintf("transfer amount too low: amount=%s min_amount=%s token=%s chain_id=%d",
		value.String(), minAmount.String(), req.Token.Symbol, req.Token.ChainID), nil
}

// Close cleans up filter resources
func (f *MinDistributionFilter) Close() error {
	return nil
}

func (f *MinDistributionFilter) getMinAmount(token types.SupportedToken) math.Int {
	if f.catalog != nil {
		if t, err := f.catalog.Get(token.Address, token.ChainID); err == nil {
			return catalog.MinDistribution(t)
		}
	}
	return catalog.MinDistribution(token)
}
