package filters

import (
	"context"
	"fmt"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

var _ types.AddressSource = (*StaticSource)(nil)

// StaticSource serves addresses written directly in the filter config. Every list name
// returns the same addresses.
type StaticSource struct {
	list types.AddressList
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Configure(config map[string]interface{}) error {
	raw, ok := config["addresses"].([]interface{})
	if !ok {
		return fmt.Errorf("static source requires an 'addresses' list")
	}
	entries := make([]string, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("static source: address %v is not a string", v)
		}
		entries = append(entries, str)
	}
	s.list = types.NewAddressList(entries)
	if len(s.list.Rejected) > 0 {
		return fmt.Errorf("static source: invalid addresses %q", s.list.Rejected)
	}
	return nil
}

func (s *StaticSource) Addresses(context.Context, string) (types.AddressList, error) {
	return s.list, nil
}

func (s *StaticSource) Close() error { return nil }
