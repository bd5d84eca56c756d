package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/permit"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

type permitOutput struct {
	Permit    types.PermitPackage `json:"permit"`
	TypedData apitypes.TypedData  `json:"typedData"`
}

func PermitCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permit [chain-id] [token] [owner] [spender] [amount]",
		Short: "Build the Permit2 typed data an owner has to sign",
		Long: "Reads the owner's current Permit2 nonce and prints the permit together with its EIP-712 typed data. " +
			"With --sign the permit is signed with the owner key held in the named environment variable.",
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chainID, err := types.ParseChainID(args[0])
			if err != nil {
				return fmt.Errorf("invalid chain id %q: %w", args[0], err)
			}

			validFor, err := cmd.Flags().GetDuration(flagDeadline)
			if err != nil {
				return err
			}
			decimal, err := cmd.Flags().GetBool(flagDecimal)
			if err != nil {
				return err
			}
			signEnv, err := cmd.Flags().GetString(flagSign)
			if err != nil {
				return err
			}

			engine, err := NewEngine(ctx, a.Config, a.Logger, EngineOptions{TrustedSigning: signEnv != ""})
			if err != nil {
				return err
			}
			defer engine.Close()

			token, err := engine.Catalog.Get(args[1], chainID)
			if err != nil {
				return err
			}
			amt := args[4]
			if decimal {
				amt, err = amount.ToBaseUnits(amt, token.Decimals)
				if err != nil {
					return err
				}
			}

			deadline := uint64(time.Now().Add(validFor).Unix())
			pkg, err := engine.Builder.BuildUnsigned(ctx, token, args[2], args[3], amt, deadline)
			if err != nil {
				return err
			}

			if signEnv != "" {
				key, err := parsePrivateKey(os.Getenv(signEnv))
				if err != nil {
					return err
				}
				pkg, err = engine.Builder.SignWithKey(ctx, pkg, key, chainID)
				if err != nil {
					return err
				}
			}

			info, err := engine.Registry.Resolve(chainID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), permitOutput{Permit: pkg, TypedData: permit.TypedData(pkg, info)})
		},
	}

	cmd.Flags().Duration(flagDeadline, time.Hour, "how long the signature stays valid")
	cmd.Flags().Bool(flagDecimal, false, "amount is a decimal string in whole tokens")
	cmd.Flags().String(flagSign, "", "sign with the owner key stored in this environment variable")

	return cmd
}
