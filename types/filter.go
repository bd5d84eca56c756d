package types

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/log"
)

// TransferFilter screens a transfer before any transaction is built for it. Check returns a
// non-empty reason to hold the transfer back.
type TransferFilter interface {
	Name() string
	Initialize(ctx context.Context, config map[string]interface{}, logger log.Logger) error
	Check(ctx context.Context, req *TransferRequest) (reason string, err error)
	Close() error
}

// FilterRegistry runs filters in registration order. Filter names are unique.
type FilterRegistry struct {
	logger  log.Logger
	filters []TransferFilter
	byName  map[string]TransferFilter
}

func NewFilterRegistry(logger log.Logger) *FilterRegistry {
	return &FilterRegistry{
		logger: logger,
		byName: make(map[string]TransferFilter),
	}
}

func (r *FilterRegistry) Register(filter TransferFilter) error {
	name := filter.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("filter %q already registered", name)
	}
	r.byName[name] = filter
	r.filters = append(r.filters, filter)
	r.logger.Debug("Registered filter", "name", name, "position", len(r.filters))
	return nil
}

// Names lists the registered filters in the order they run.
func (r *FilterRegistry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.filters))
	for i, f := range r.filters {
		names[i] = f.Name()
	}
	return names
}

// Screen reports whether req is held back. The reason is prefixed with the name of the first
// filter that held it. A filter that fails to decide lets the transfer through and the next
// filter runs.
func (r *FilterRegistry) Screen(ctx context.Context, req *TransferRequest) (filtered bool, reason string) {
	if r == nil {
		return false, ""
	}
	for _, f := range r.filters {
		why, err := f.Check(ctx, req)
		if err != nil {
			r.logger.Error("Filter could not decide", "filter", f.Name(), "to", req.To, "chain_id", req.Token.ChainID, "error", err)
			continue
		}
		if why != "" {
			return true, f.Name() + ": " + why
		}
	}
	return false, ""
}

// Close closes every filter, including after a failure, and returns the joined errors.
func (r *FilterRegistry) Close() error {
	if r == nil {
		return nil
	}
	var errs error
	for _, f := range r.filters {
		if err := f.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("closing filter %s: %w", f.Name(), err))
		}
	}
	return errs
}
