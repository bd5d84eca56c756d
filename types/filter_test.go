package types

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cosmossdk.io/log"
)

type stubFilter struct {
	name     string
	reason   string
	checkErr error
	closeErr error
	closed   bool
	checked  int
}

func (s *stubFilter) Name() string { return s.name }
func (s *stubFilter) Check(context.Context, *TransferRequest) (string, error) {
	s.checked++
	return s.reason, s.checkErr
}
func (s *stubFilter) Initialize(context.Context, map[string]interface{}, log.Logger) error {
	return nil
}
func (s *stubFilter) Close() error {
	s.closed = true
	return s.closeErr
}

func testLogger() log.Logger {
	return log.NewLogger(os.Stdout, log.LevelOption(zerolog.DebugLevel))
}

func testReq() *TransferRequest {
	return &TransferRequest{
		Token:  SupportedToken{Symbol: "USDC", ChainID: 11155111, Decimals: 6},
		From:   "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		To:     "0x1234567890123456789012345678901234567890",
		Amount: "1000000",
	}
}

func TestFilterRegistry_Register(t *testing.T) {
	r := NewFilterRegistry(testLogger())
	require.NoError(t, r.Register(&stubFilter{name: "a"}))
	require.NoError(t, r.Register(&stubFilter{name: "b"}))
	require.ErrorContains(t, r.Register(&stubFilter{name: "a"}), `"a" already registered`)
	require.Equal(t, []string{"a", "b"}, r.Names())
}

func TestFilterRegistry_Screen(t *testing.T) {
	tests := []struct {
		name     string
		filters  []*stubFilter
		filtered bool
		reason   string
		checked  []int
	}{
		{
			name:    "none held",
			filters: []*stubFilter{{name: "a"}, {name: "b"}},
			checked: []int{1, 1},
		},
		{
			name:     "first hold wins",
			filters:  []*stubFilter{{name: "a"}, {name: "b", reason: "too small"}, {name: "c", reason: "other"}},
			filtered: true,
			reason:   "b: too small",
			checked:  []int{1, 1, 0},
		},
		{
			name:    "undecided filter is skipped",
			filters: []*stubFilter{{name: "a", reason: "ignored", checkErr: errors.New("boom")}, {name: "b"}},
			checked: []int{1, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewFilterRegistry(testLogger())
			for _, f := range tt.filters {
				require.NoError(t, r.Register(f))
			}
			filtered, reason := r.Screen(context.Background(), testReq())
			require.Equal(t, tt.filtered, filtered)
			require.Equal(t, tt.reason, reason)
			for i, f := range tt.filters {
				require.Equal(t, tt.checked[i], f.checked, f.name)
			}
		})
	}
}

func TestFilterRegistry_NilRegistry(t *testing.T) {
	var r *FilterRegistry
	filtered, reason := r.Screen(context.Background(), testReq())
	require.False(t, filtered)
	require.Empty(t, reason)
	require.Empty(t, r.Names())
	require.NoError(t, r.Close())
}

func TestFilterRegistry_Close_JoinsErrors(t *testing.T) {
	r := NewFilterRegistry(testLogger())
	errA := errors.New("a")
	f1, f2 := &stubFilter{name: "f1", closeErr: errA}, &stubFilter{name: "f2"}
	require.NoError(t, r.Register(f1))
	require.NoError(t, r.Register(f2))

	err := r.Close()
	require.ErrorIs(t, err, errA)
	require.ErrorContains(t, err, "closing filter f1")
	require.True(t, f1.closed)
	require.True(t, f2.closed)
}
