package filters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

const DefaultWhitelistRefreshInterval = 5 * time.Minute

// RecipientWhitelistFilter holds back transfers whose recipient is not on an allow list read
// from an AddressSource. The list is reloaded every refresh interval; a failed reload keeps
// the previous list.
type RecipientWhitelistFilter struct {
	source   types.AddressSource
	list     string
	interval time.Duration
	logger   log.Logger

	mu      sync.RWMutex
	allowed map[string]struct{}
	loaded  time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRecipientWhitelistFilter() *RecipientWhitelistFilter {
	return &RecipientWhitelistFilter{
		allowed: make(map[string]struct{}),
		stop:    make(chan struct{}),
	}
}

func (f *RecipientWhitelistFilter) Name() string { return "recipient-whitelist" }

func newAddressSource(name string) (types.AddressSource, error) {
	switch name {
	case "quicknode-kv":
		return NewQuickNodeSource(), nil
	case "static":
		return &StaticSource{}, nil
	default:
		return nil, fmt.Errorf("unknown address source %q", name)
	}
}

// Initialize expects "source" (quicknode-kv or static), "source_config" and, for remote
// sources, "list". "refresh_interval" is a duration string or whole seconds.
func (f *RecipientWhitelistFilter) Initialize(ctx context.Context, config map[string]interface{}, logger log.Logger) error {
	f.logger = logger

	sourceName, _ := config["source"].(string)
	source, err := newAddressSource(sourceName)
	if err != nil {
		return err
	}
	sourceConfig, _ := config["source_config"].(map[string]interface{})
	if err := source.Configure(sourceConfig); err != nil {
		return err
	}
	f.source = source

	f.list, _ = config["list"].(string)
	if f.list == "" && sourceName != "static" {
		return fmt.Errorf("%s filter requires 'list' for source %s", f.Name(), sourceName)
	}

	f.interval, err = refreshInterval(config["refresh_interval"])
	if err != nil {
		return err
	}

	if err := f.reload(ctx); err != nil {
		return fmt.Errorf("loading initial allow list: %w", err)
	}
	logger.Info("Recipient whitelist loaded", "source", sourceName, "list", f.list, "refresh", f.interval, "count", f.Count())

	go f.refreshLoop(ctx)
	return nil
}

func refreshInterval(v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return DefaultWhitelistRefreshInterval, nil
	case int:
		if val <= 0 {
			return 0, fmt.Errorf("refresh_interval must be positive, got %d", val)
		}
		return time.Duration(val) * time.Second, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("invalid refresh_interval %q", val)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("refresh_interval has unsupported type %T", v)
	}
}

func (f *RecipientWhitelistFilter) Check(_ context.Context, req *types.TransferRequest) (string, error) {
	to := types.NormalizeAddress(req.To)
	f.mu.RLock()
	_, ok := f.allowed[to]
	f.mu.RUnlock()
	if to == "" || !ok {
		return fmt.Sprintf("recipient %s not on allow list (token=%s, chain_id=%d)", req.To, req.Token.Symbol, req.Token.ChainID), nil
	}
	return "", nil
}

func (f *RecipientWhitelistFilter) Close() error {
	f.stopOnce.Do(func() { close(f.stop) })
	if f.source == nil {
		return nil
	}
	return f.source.Close()
}

func (f *RecipientWhitelistFilter) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case <-ticker.C:
			if err := f.reload(ctx); err != nil {
				f.logger.Error("Recipient whitelist reload failed, keeping previous list", "error", err, "loaded_at", f.LoadedAt())
			}
		}
	}
}

func (f *RecipientWhitelistFilter) reload(ctx context.Context) error {
	l, err := f.source.Addresses(ctx, f.list)
	if err != nil {
		return err
	}
	if len(l.Rejected) > 0 {
		f.logger.Info("Ignoring invalid allow list entries", "count", len(l.Rejected), "entries", l.Rejected)
	}

	allowed := make(map[string]struct{}, len(l.Addresses))
	for _, a := range l.Addresses {
		allowed[a] = struct{}{}
	}

	f.mu.Lock()
	f.allowed = allowed
	f.loaded = time.Now()
	f.mu.Unlock()
	return nil
}

// Count is the number of addresses on the current list.
func (f *RecipientWhitelistFilter) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.allowed)
}

// LoadedAt is when the current list was fetched.
func (f *RecipientWhitelistFilter) LoadedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loaded
}
