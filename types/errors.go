package types

import "errors"

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrProviderUnavailable is transient; callers may retry.
	ErrProviderUnavailable      = errors.New("provider unavailable")
	ErrUnknownToken             = errors.New("unknown token")
	ErrTokenMetadataUnavailable = errors.New("token metadata unavailable")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrAllowanceFetch           = errors.New("allowance fetch failed")
	ErrSigning                  = errors.New("signing failed")
	// ErrSubmission means the chain rejected the transaction before inclusion.
	ErrSubmission = errors.New("submission rejected")
	// ErrBroadcastUnknown means the node may have accepted the transaction before the
	// request failed, so its nonce must be treated as spent.
	ErrBroadcastUnknown    = errors.New("broadcast outcome unknown")
	ErrTransactionNotFound = errors.New("transaction not found")
)
