package filters

import (
	"context"
	"fmt"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/catalog"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// TokenActiveFilter filters transfers of tokens that are not in the catalog or not active.
type TokenActiveFilter struct {
	catalog *catalog.Catalog
	logger  log.Logger
}

func NewTokenActiveFilter() *TokenActiveFilter {
	return &TokenActiveFilter{}
}

func (f *TokenActiveFilter) Name() string {
	return "token-active"
}

func (f *TokenActiveFilter) Initialize(ctx context.Context, config map[string]interface{}, logger log.Logger) error {
	f.logger = logger
	catalogRaw, ok := config["catalog"]
	if !ok {
		return fmt.Errorf("token-active filter requires 'catalog' in config")
	}
	c, ok := catalogRaw.(*catalog.Catalog)
	if !ok || c == nil {
		return fmt.Errorf("catalog has invalid type")
	}
	f.catalog = c
	logger.Info("Token active filter initialized")
	return nil
}

func (f *TokenActiveFilter) Check(_ context.Context, req *types.TransferRequest) (string, error) {
	token, err := f.catalog.Get(req.Token.Address, req.Token.ChainID)
	if err != nil {
		return fmt.Sprintf("token not supported: token=%s chain_id=%d", req.Token.Address, req.Token.ChainID), nil
	}
	if !token.IsActive {
		return fmt.Sprintf("token disabled: symbol=%s chain_id=%d", token.Symbol, token.ChainID), nil
	}
	return "", nil
}

func (f *TokenActiveFilter) Close() error {
	return nil
}
