package filters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

const testAddr = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"

// fakeSource serves raw entries, or err when set.
type fakeSource struct {
	entries []string
	err     error
}

func (s *fakeSource) Name() string                           { return "fake" }
func (s *fakeSource) Configure(map[string]interface{}) error { return nil }
func (s *fakeSource) Addresses(context.Context, string) (types.AddressList, error) {
	if s.err != nil {
		return types.AddressList{}, s.err
	}
	return types.NewAddressList(s.entries), nil
}
func (s *fakeSource) Close() error { return nil }

func transferTo(to string) *types.TransferRequest {
	return &types.TransferRequest{
		Token:  types.SupportedToken{Symbol: "USDC", ChainID: 11155111},
		From:   "0x00000000000000000000000000000000000000aa",
		To:     to,
		Amount: "1000000",
	}
}

func loadedFilter(t *testing.T, src *fakeSource) *RecipientWhitelistFilter {
	t.Helper()
	f := NewRecipientWhitelistFilter()
	f.source = src
	f.list = "test"
	f.logger = log.NewNopLogger()
	require.NoError(t, f.reload(context.Background()))
	return f
}

func TestRecipientWhitelistFilter_Check(t *testing.T) {
	f := loadedFilter(t, &fakeSource{entries: []string{testAddr, "not-an-address"}})
	require.Equal(t, 1, f.Count())

	tests := []struct {
		name string
		to   string
		held bool
	}{
		{"listed, lowercase", "0x742d35cc6634c0532925a3b844bc9e7595f0beb0", false},
		{"listed, checksummed", testAddr, false},
		{"not listed", "0x1234567890123456789012345678901234567890", true},
		{"missing prefix", "742d35cc6634c0532925a3b844bc9e7595f0beb0", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, err := f.Check(context.Background(), transferTo(tt.to))
			require.NoError(t, err)
			require.Equal(t, tt.held, reason != "")
			if tt.held {
				require.Contains(t, reason, "not on allow list")
			}
		})
	}
}

func TestRecipientWhitelistFilter_FailedReloadKeepsList(t *testing.T) {
	src := &fakeSource{entries: []string{testAddr}}
	f := loadedFilter(t, src)
	loaded := f.LoadedAt()

	src.err = errors.New("unavailable")
	require.Error(t, f.reload(context.Background()))
	require.Equal(t, 1, f.Count())
	require.Equal(t, loaded, f.LoadedAt())

	reason, err := f.Check(context.Background(), transferTo(testAddr))
	require.NoError(t, err)
	require.Empty(t, reason)
}

func TestRecipientWhitelistFilter_QuickNode(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/recipients", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"data":{"items":["` + testAddr + `","0x742d35cc6634c0532925a3b844bc9e7595f0beb0"]}}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewRecipientWhitelistFilter()
	err := f.Initialize(ctx, map[string]interface{}{
		"source":           "quicknode-kv",
		"list":             "recipients",
		"refresh_interval": "1h",
		"source_config": map[string]interface{}{
			"api_key":  "secret",
			"base_url": srv.URL + "/",
		},
	}, log.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, time.Hour, f.interval)
	require.Equal(t, 1, f.Count())
	require.Equal(t, int32(1), calls.Load())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestRecipientWhitelistFilter_Static(t *testing.T) {
	f := NewRecipientWhitelistFilter()
	err := f.Initialize(context.Background(), map[string]interface{}{
		"source":           "static",
		"refresh_interval": 60,
		"source_config": map[string]interface{}{
			"addresses": []interface{}{testAddr, "0x00000000000000000000000000000000000000A1"},
		},
	}, log.NewNopLogger())
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, time.Minute, f.interval)
	require.Equal(t, 2, f.Count())

	reason, err := f.Check(context.Background(), transferTo("0x00000000000000000000000000000000000000a1"))
	require.NoError(t, err)
	require.Empty(t, reason)
}

func TestRecipientWhitelistFilter_InitializeErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr string
	}{
		{
			name:    "unknown source",
			config:  map[string]interface{}{"source": "redis", "list": "r", "source_config": map[string]interface{}{}},
			wantErr: `unknown address source "redis"`,
		},
		{
			name:    "remote source without list",
			config:  map[string]interface{}{"source": "quicknode-kv", "source_config": map[string]interface{}{"api_key": "k"}},
			wantErr: "requires 'list'",
		},
		{
			name:    "missing api key",
			config:  map[string]interface{}{"source": "quicknode-kv", "list": "r", "source_config": map[string]interface{}{}},
			wantErr: "requires 'api_key'",
		},
		{
			name: "bad static entry",
			config: map[string]interface{}{"source": "static", "source_config": map[string]interface{}{
				"addresses": []interface{}{"0x1"},
			}},
			wantErr: "invalid addresses",
		},
		{
			name: "bad interval",
			config: map[string]interface{}{"source": "static", "refresh_interval": "-1s", "source_config": map[string]interface{}{
				"addresses": []interface{}{testAddr},
			}},
			wantErr: "invalid refresh_interval",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRecipientWhitelistFilter().Initialize(context.Background(), tt.config, log.NewNopLogger())
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
