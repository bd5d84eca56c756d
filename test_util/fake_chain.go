package testutil

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

var _ types.Chain = (*FakeChain)(nil)

// SubmitCall is one transaction handed to a FakeChain.
type SubmitCall struct {
	Kind   string // "permit" or "transferFrom"
	Sender string
	Permit types.PermitPackage
	From   string
	To     string
	Amount *big.Int
	Token  string
}

// FakeChain is an in-memory types.Chain. Submitted transactions are mined immediately
// unless OnSubmit says otherwise.
type FakeChain struct {
	mu   sync.Mutex
	info types.ChainInfo

	// ChainName overrides Name(); by default it is the network name.
	ChainName string

	InitErr   error
	InitCalls int
	Closed    bool

	Head         uint64
	GasUsed      uint64
	Metadata     map[string]types.TokenMetadata
	Balances     map[string]*big.Int
	Allowances   map[string]types.AllowanceState
	AllowanceErr error

	// OnSubmit decides the receipt status of each submission, or rejects it with an error.
	// Returning mine=false leaves the transaction pending.
	OnSubmit func(call SubmitCall, n int) (status uint64, mine bool, err error)

	Calls    []SubmitCall
	receipts map[string]*types.Receipt
	known    map[string]bool

	inFlight    int
	MaxInFlight int
}

func NewFakeChain(info types.ChainInfo) *FakeChain {
	return &FakeChain{
		info:       info,
		Head:       100,
		GasUsed:    50_000,
		Metadata:   make(map[string]types.TokenMetadata),
		Balances:   make(map[string]*big.Int),
		Allowances: make(map[string]types.AllowanceState),
		receipts:   make(map[string]*types.Receipt),
		known:      make(map[string]bool),
	}
}

func allowanceKey(owner, token, spender string) string {
	return types.NormalizeAddress(owner) + "|" + types.NormalizeAddress(token) + "|" + types.NormalizeAddress(spender)
}

// SetAllowance sets the on-chain allowance state returned for (owner, token, spender).
func (f *FakeChain) SetAllowance(owner, token, spender string, state types.AllowanceState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Allowances[allowanceKey(owner, token, spender)] = state
}

func (f *FakeChain) SetBalance(token, owner string, balance *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[types.NormalizeAddress(token)+"|"+types.NormalizeAddress(owner)] = balance
}

// Mine attaches a receipt to a known or unknown hash.
func (f *FakeChain) Mine(txHash string, status, block uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mine(txHash, status, block)
}

func (f *FakeChain) mine(txHash string, status, block uint64) {
	f.known[strings.ToLower(txHash)] = true
	f.receipts[strings.ToLower(txHash)] = &types.Receipt{
		TxHash:      txHash,
		Status:      status,
		BlockNumber: block,
		GasUsed:     f.GasUsed,
	}
}

// MarkPending makes a hash known to the node without a receipt.
func (f *FakeChain) MarkPending(txHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known[strings.ToLower(txHash)] = true
}

func (f *FakeChain) SetHead(head uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Head = head
}

func (f *FakeChain) Submissions() []SubmitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubmitCall(nil), f.Calls...)
}

func (f *FakeChain) Name() string {
	if f.ChainName != "" {
		return f.ChainName
	}
	return f.info.NetworkName
}

func (f *FakeChain) Info() types.ChainInfo { return f.info }

func (f *FakeChain) InitializeClients(context.Context, log.Logger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *FakeChain) CloseClients() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func (f *FakeChain) ReadBalance(_ context.Context, token, owner string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.Balances[types.NormalizeAddress(token)+"|"+types.NormalizeAddress(owner)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeChain) ReadNativeBalance(context.Context, string) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

func (f *FakeChain) ReadMetadata(_ context.Context, token string) (types.TokenMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	md, ok := f.Metadata[types.NormalizeAddress(token)]
	if !ok {
		return types.TokenMetadata{}, fmt.Errorf("execution reverted")
	}
	return md, nil
}

func (f *FakeChain) ReadAllowance(_ context.Context, owner, token, spender string) (types.AllowanceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AllowanceErr != nil {
		return types.AllowanceState{}, f.AllowanceErr
	}
	state, ok := f.Allowances[allowanceKey(owner, token, spender)]
	if !ok {
		return types.AllowanceState{Amount: big.NewInt(0)}, nil
	}
	return state, nil
}

func (f *FakeChain) SubmitPermit(_ context.Context, key *ecdsa.PrivateKey, pkg types.PermitPackage) (string, error) {
	return f.submit(SubmitCall{Kind: "permit", Sender: senderOf(key), Permit: pkg})
}

func (f *FakeChain) SubmitTransferFrom(_ context.Context, key *ecdsa.PrivateKey, from, to string, amount *big.Int, token string) (string, error) {
	return f.submit(SubmitCall{Kind: "transferFrom", Sender: senderOf(key), From: from, To: to, Amount: amount, Token: token})
}

func (f *FakeChain) submit(call SubmitCall) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.Calls)
	status, mine := types.ReceiptStatusSuccessful, true
	if f.OnSubmit != nil {
		var err error
		status, mine, err = f.OnSubmit(call, n)
		if errors.Is(err, types.ErrBroadcastUnknown) {
			return "", err
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
		}
	}
	f.Calls = append(f.Calls, call)

	f.inFlight++
	if f.inFlight > f.MaxInFlight {
		f.MaxInFlight = f.inFlight
	}

	hash := fmt.Sprintf("0x%064x", uint64(f.info.ChainID)<<32+uint64(n)+1)
	f.known[hash] = true
	if mine {
		f.mine(hash, status, f.Head)
	}
	return hash, nil
}

func (f *FakeChain) Receipt(_ context.Context, txHash string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[strings.ToLower(txHash)]
	if !ok {
		return nil, types.ErrTransactionNotFound
	}
	if f.inFlight > 0 {
		f.inFlight--
	}
	out := *r
	return &out, nil
}

func (f *FakeChain) TransactionKnown(_ context.Context, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.known[strings.ToLower(txHash)], nil
}

func (f *FakeChain) HeadBlock(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Head, nil
}

func senderOf(key *ecdsa.PrivateKey) string {
	if key == nil {
		return ""
	}
	return types.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex())
}
