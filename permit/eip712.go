package permit

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

// DomainName is the EIP-712 domain name of every Permit2 deployment. Permit2 does not set
// a domain version.
const DomainName = "Permit2"

const primaryType = "PermitSingle"

var permitTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"PermitSingle": {
		{Name: "details", Type: "PermitDetails"},
		{Name: "spender", Type: "address"},
		{Name: "sigDeadline", Type: "uint256"},
	},
	"PermitDetails": {
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint160"},
		{Name: "expiration", Type: "uint48"},
		{Name: "nonce", Type: "uint48"},
	},
}

// TypedData returns the PermitSingle typed data the owner signs for pkg on chain.
func TypedData(pkg types.PermitPackage, chain types.ChainInfo) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       permitTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(uint64(chain.ChainID))),
			VerifyingContract: common.HexToAddress(chain.Permit2Address).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"details": map[string]interface{}{
				"token":      common.HexToAddress(pkg.Details.Token).Hex(),
				"amount":     pkg.Details.Amount,
				"expiration": strconv.FormatUint(pkg.Details.Expiration, 10),
				"nonce":      strconv.FormatUint(pkg.Details.Nonce, 10),
			},
			"spender":     common.HexToAddress(pkg.Spender).Hex(),
			"sigDeadline": strconv.FormatUint(pkg.Deadline, 10),
		},
	}
}

// Digest computes keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(PermitSingle)).
func Digest(pkg types.PermitPackage, chain types.ChainInfo) ([]byte, error) {
	typedData := TypedData(pkg, chain)

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// RecoverSigner returns the address that produced pkg.Signature. Both 0/1 and 27/28
// recovery ids are accepted.
func RecoverSigner(pkg types.PermitPackage, chain types.ChainInfo) (common.Address, error) {
	if len(pkg.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d", types.ErrSigning, crypto.SignatureLength, len(pkg.Signature))
	}
	digest, err := Digest(pkg, chain)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", types.ErrSigning, err)
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, pkg.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recover signer: %w", types.ErrSigning, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
