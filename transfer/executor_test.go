package transfer_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/crypto"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/permit2-distributor/allowance"
	"github.com/strangelove-ventures/permit2-distributor/ethereum"
	"github.com/strangelove-ventures/permit2-distributor/metrics"
	"github.com/strangelove-ventures/permit2-distributor/permit"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	testutil "github.com/strangelove-ventures/permit2-distributor/test_util"
	"github.com/strangelove-ventures/permit2-distributor/transfer"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

const chainID types.ChainID = 11155111

var usdc = types.SupportedToken{
	Address:  testutil.SepoliaUSDC,
	Symbol:   "USDC",
	Name:     "USDC",
	Decimals: 6,
	ChainID:  chainID,
	IsActive: true,
}

type suite struct {
	chain       *testutil.FakeChain
	reg         *registry.Registry
	builder     *permit.Builder
	exec        *transfer.Executor
	executorKey *ecdsa.PrivateKey
	ownerKey    *ecdsa.PrivateKey
	deadline    uint64
}

func newSuite(t *testing.T, opts ...transfer.Option) *suite {
	t.Helper()
	chain := testutil.NewFakeChain(types.ChainInfo{
		ChainID:             chainID,
		NetworkName:         "sepolia",
		Permit2Address:      ethereum.DefaultPermit2Address,
		GasLimit:            ethereum.DefaultGasLimit,
		ReceiptPollInterval: time.Millisecond,
	})
	reg := registry.FromChains(log.NewNopLogger(), chain)

	executorKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	ownerKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &suite{
		chain:       chain,
		reg:         reg,
		builder:     permit.NewBuilder(reg, allowance.NewTracker(reg), permit.WithTrustedSigning()),
		exec:        transfer.NewExecutor(reg, log.NewNopLogger(), opts...),
		executorKey: executorKey,
		ownerKey:    ownerKey,
		deadline:    uint64(time.Now().Add(time.Hour).Unix()),
	}
}

func address(key *ecdsa.PrivateKey) string {
	return types.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

// request builds a transfer of amt to `to` backed by a permit the owner signed with nonce.
func (s *suite) request(t *testing.T, to, amt string, nonce uint64) types.TransferRequest {
	t.Helper()
	pkg := types.PermitPackage{
		ChainID: chainID,
		Owner:   address(s.ownerKey),
		Details: types.PermitDetails{
			Token:      usdc.Address,
			Amount:     amt,
			Expiration: s.deadline,
			Nonce:      nonce,
		},
		Spender:  address(s.executorKey),
		Deadline: s.deadline,
	}
	signed, err := s.builder.SignWithKey(context.Background(), pkg, s.ownerKey, chainID)
	require.NoError(t, err)
	return types.TransferRequest{
		Token:    usdc,
		From:     pkg.Owner,
		To:       to,
		Amount:   amt,
		Permit:   signed,
		Deadline: s.deadline,
	}
}

const recipient = "0x00000000000000000000000000000000000000c1"

func TestExecute_Success(t *testing.T) {
	s := newSuite(t)
	req := s.request(t, recipient, "1500000", 0)

	res, err := s.exec.Execute(context.Background(), req, s.executorKey)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, uint64(100), res.BlockNumber)
	require.Equal(t, uint64(100_000), res.GasUsed)

	calls := s.chain.Submissions()
	require.Len(t, calls, 2)
	require.Equal(t, "permit", calls[0].Kind)
	require.Equal(t, req.Permit.Signature, calls[0].Permit.Signature)
	require.Equal(t, "transferFrom", calls[1].Kind)
	require.Equal(t, address(s.executorKey), calls[1].Sender)
	require.Equal(t, req.From, calls[1].From)
	require.Equal(t, recipient, calls[1].To)
	require.Equal(t, "1500000", calls[1].Amount.String())

	status, err := s.chain.Receipt(context.Background(), res.TxHash)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, status.Status)
}

func TestExecute_RejectsReusedNonce(t *testing.T) {
	s := newSuite(t)
	req := s.request(t, recipient, "1", 4)

	_, err := s.exec.Execute(context.Background(), req, s.executorKey)
	require.NoError(t, err)

	res, err := s.exec.Execute(context.Background(), req, s.executorKey)
	require.ErrorIs(t, err, types.ErrSubmission)
	require.Empty(t, res.TxHash)
	require.Len(t, s.chain.Submissions(), 2)

	// The next nonce is accepted.
	_, err = s.exec.Execute(context.Background(), s.request(t, recipient, "1", 5), s.executorKey)
	require.NoError(t, err)
}

func TestExecute_Prechecks(t *testing.T) {
	s := newSuite(t)
	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    *ecdsa.PrivateKey
		mutate func(r *types.TransferRequest)
	}{
		{"nil key", nil, func(*types.TransferRequest) {}},
		{"executor is not spender", stranger, func(*types.TransferRequest) {}},
		{"unsigned", s.executorKey, func(r *types.TransferRequest) { r.Permit.Signature = nil }},
		{"amount above permit", s.executorKey, func(r *types.TransferRequest) { r.Amount = "1500001" }},
		{"zero amount", s.executorKey, func(r *types.TransferRequest) { r.Amount = "0" }},
		{"malformed amount", s.executorKey, func(r *types.TransferRequest) { r.Amount = "1.5" }},
		{"token mismatch", s.executorKey, func(r *types.TransferRequest) {
			r.Token.Address = "0x0000000000000000000000000000000000000001"
		}},
		{"source is not owner", s.executorKey, func(r *types.TransferRequest) { r.From = recipient }},
		{"bad recipient", s.executorKey, func(r *types.TransferRequest) { r.To = "alice" }},
		{"tampered permit", s.executorKey, func(r *types.TransferRequest) {
			r.Permit.Details.Amount = "2000000"
		}},
		{"deadline passed", s.executorKey, func(r *types.TransferRequest) {
			r.Deadline = 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := s.request(t, recipient, "1500000", 9)
			tt.mutate(&req)
			res, err := s.exec.Execute(context.Background(), req, tt.key)
			require.ErrorIs(t, err, types.ErrSubmission)
			require.ErrorIs(t, res.Err, types.ErrSubmission)
			require.Empty(t, res.TxHash)
		})
	}
	require.Empty(t, s.chain.Submissions())
}

func TestExecute_ExpiredPermit(t *testing.T) {
	s := newSuite(t, transfer.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))
	_, err := s.exec.Execute(context.Background(), s.request(t, recipient, "1", 0), s.executorKey)
	require.ErrorIs(t, err, types.ErrSubmission)
	require.ErrorContains(t, err, "deadline")
}

func TestExecute_PermitReverted(t *testing.T) {
	s := newSuite(t)
	s.chain.OnSubmit = func(call testutil.SubmitCall, _ int) (uint64, bool, error) {
		if call.Kind == "permit" {
			return 0, true, nil
		}
		return types.ReceiptStatusSuccessful, true, nil
	}

	res, err := s.exec.Execute(context.Background(), s.request(t, recipient, "1", 0), s.executorKey)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotEmpty(t, res.TxHash)
	require.Len(t, s.chain.Submissions(), 1)
}

func TestExecute_TransferReverted(t *testing.T) {
	s := newSuite(t)
	s.chain.OnSubmit = func(call testutil.SubmitCall, _ int) (uint64, bool, error) {
		if call.Kind == "transferFrom" {
			return 0, true, nil
		}
		return types.ReceiptStatusSuccessful, true, nil
	}

	res, err := s.exec.Execute(context.Background(), s.request(t, recipient, "1", 0), s.executorKey)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, uint64(100_000), res.GasUsed)
	require.Len(t, s.chain.Submissions(), 2)
}

func TestExecute_LowGasRejected(t *testing.T) {
	s := newSuite(t)
	s.chain.OnSubmit = func(testutil.SubmitCall, int) (uint64, bool, error) {
		return 0, false, errors.New("intrinsic gas too low")
	}
	req := s.request(t, recipient, "1", 0)

	res, err := s.exec.Execute(context.Background(), req, s.executorKey)
	require.ErrorIs(t, err, types.ErrSubmission)
	require.ErrorContains(t, err, "intrinsic gas too low")
	require.Empty(t, res.TxHash)

	// Nothing was broadcast, so the same permit may be submitted again.
	s.chain.OnSubmit = nil
	res, err = s.exec.Execute(context.Background(), req, s.executorKey)
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestExecute_AmbiguousBroadcastKeepsNonce(t *testing.T) {
	s := newSuite(t)
	s.chain.OnSubmit = func(testutil.SubmitCall, int) (uint64, bool, error) {
		return 0, false, fmt.Errorf("%w: i/o timeout", types.ErrBroadcastUnknown)
	}
	req := s.request(t, recipient, "1", 0)

	_, err := s.exec.Execute(context.Background(), req, s.executorKey)
	require.ErrorIs(t, err, types.ErrBroadcastUnknown)

	// The permit may already be in the mempool, so it must not be sent again.
	s.chain.OnSubmit = nil
	_, err = s.exec.Execute(context.Background(), req, s.executorKey)
	require.ErrorIs(t, err, types.ErrSubmission)
	require.ErrorContains(t, err, "already submitted")
	require.Empty(t, s.chain.Submissions())
}

func TestExecute_MetricsUseNetworkName(t *testing.T) {
	m := metrics.NewPromMetrics()
	s := newSuite(t, transfer.WithMetrics(m))
	s.chain.ChainName = "sepolia-config-key"
	batch := transfer.NewBatch(s.exec, filterRegistry(t, &recipientFilter{blocked: bob}), nil, m, log.NewNopLogger())

	res, err := batch.ExecuteAll(context.Background(), []types.TransferRequest{
		s.request(t, alice, "1", 0),
		s.request(t, bob, "1", 1),
	}, s.executorKey)
	require.NoError(t, err)
	require.Equal(t, 1, res.SuccessCount)

	require.Equal(t, 1.0, promtestutil.ToFloat64(m.TransferTotal.WithLabelValues("sepolia", "USDC", "success")))
	require.Equal(t, 1.0, promtestutil.ToFloat64(m.TransferTotal.WithLabelValues("sepolia", "USDC", "filtered")))
	require.Equal(t, 2, promtestutil.CollectAndCount(m.TransferTotal))
}

func TestExecute_CancelledWhileWaiting(t *testing.T) {
	s := newSuite(t)
	s.chain.OnSubmit = func(testutil.SubmitCall, int) (uint64, bool, error) {
		return 0, false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := s.exec.Execute(ctx, s.request(t, recipient, "1", 0), s.executorKey)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotEmpty(t, res.TxHash)
	require.False(t, res.Success)

	known, err := s.chain.TransactionKnown(context.Background(), res.TxHash)
	require.NoError(t, err)
	require.True(t, known)
}

func TestExecute_UnsupportedChain(t *testing.T) {
	s := newSuite(t)
	req := s.request(t, recipient, "1", 0)
	req.Token.ChainID = 1
	_, err := s.exec.Execute(context.Background(), req, s.executorKey)
	require.ErrorIs(t, err, types.ErrUnsupportedChain)
}
