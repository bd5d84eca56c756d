package types

import (
	"fmt"
	"strings"
)

type Config struct {
	Chains                map[string]ChainConfig `yaml:"chains"`
	Tokens                []SupportedToken       `yaml:"tokens"`
	ValidateTokensOnStart bool                   `yaml:"validate-tokens-on-start"`
	Filters               []FilterConfig         `yaml:"filters"`
	Ledger                LedgerSettings         `yaml:"ledger"`

	API struct {
		Address        string   `yaml:"address"`
		TrustedProxies []string `yaml:"trusted-proxies"`
	} `yaml:"api"`
}

// ConfigWrapper is the raw YAML shape; chains are decoded per family afterwards.
type ConfigWrapper struct {
	Chains                map[string]map[string]any `yaml:"chains"`
	Tokens                []SupportedToken          `yaml:"tokens"`
	ValidateTokensOnStart bool                      `yaml:"validate-tokens-on-start"`
	Filters               []FilterConfig            `yaml:"filters"`
	Ledger                LedgerSettings            `yaml:"ledger"`

	API struct {
		Address        string   `yaml:"address"`
		TrustedProxies []string `yaml:"trusted-proxies"`
	} `yaml:"api"`
}

// FilterConfig enables an optional transfer filter by name.
type FilterConfig struct {
	Name    string         `yaml:"name"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

type LedgerSettings struct {
	Driver string `yaml:"driver"` // "log" (default) or "sqlite"
	DSN    string `yaml:"dsn"`
}

// Validate checks the ledger driver and its DSN.
func (l *LedgerSettings) Validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Driver)) {
	case "", "log":
		return nil
	case "sqlite":
		if l.DSN == "" {
			return fmt.Errorf("ledger dsn is required for the sqlite driver")
		}
		return nil
	default:
		return fmt.Errorf("unknown ledger driver %q: must be 'log' or 'sqlite'", l.Driver)
	}
}

// Validate checks cross references between chains and tokens.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	ids := make(map[ChainID]string, len(c.Chains))
	for name, chain := range c.Chains {
		id := chain.ID()
		if other, ok := ids[id]; ok {
			return fmt.Errorf("duplicate chain-id %d for chains %s and %s", id, other, name)
		}
		ids[id] = name
	}
	for _, t := range c.Tokens {
		if _, ok := ids[t.ChainID]; !ok {
			return fmt.Errorf("token %s references unconfigured chain-id %d", t.Symbol, t.ChainID)
		}
	}
	return c.Ledger.Validate()
}

type ChainConfig interface {
	ID() ChainID
	Chain(name string) (Chain, error)
}
