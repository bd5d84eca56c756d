package types

import "context"

// AddressSource supplies a named list of EVM addresses, such as a recipient allow list.
type AddressSource interface {
	Name() string
	Configure(config map[string]interface{}) error
	Addresses(ctx context.Context, list string) (AddressList, error)
	Close() error
}

// AddressList is a normalized, deduplicated set of addresses in first-seen order. Rejected
// keeps the raw entries that were not valid addresses.
type AddressList struct {
	Addresses []string
	Rejected  []string
}

// NewAddressList normalizes raw entries with NormalizeAddress.
func NewAddressList(raw []string) AddressList {
	var l AddressList
	seen := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		addr := NormalizeAddress(entry)
		if addr == "" {
			l.Rejected = append(l.Rejected, entry)
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		l.Addresses = append(l.Addresses, addr)
	}
	return l
}
