package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

type tokenOutput struct {
	types.SupportedToken
	Balance   string `json:"balance,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

func TokensCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens [chain-id]",
		Short: "List the active tokens of a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chainID, err := types.ParseChainID(args[0])
			if err != nil {
				return fmt.Errorf("invalid chain id %q: %w", args[0], err)
			}

			validate, err := cmd.Flags().GetBool(flagValidate)
			if err != nil {
				return err
			}
			owner, err := cmd.Flags().GetString(flagOwner)
			if err != nil {
				return err
			}
			precision, err := cmd.Flags().GetInt(flagPrecision)
			if err != nil {
				return err
			}

			engine, err := NewEngine(ctx, a.Config, a.Logger, EngineOptions{})
			if err != nil {
				return err
			}
			defer engine.Close()

			if _, err := engine.Registry.Resolve(chainID); err != nil {
				return err
			}
			if validate {
				if err := engine.Catalog.Validate(ctx); err != nil {
					return err
				}
			}

			tokens := engine.Catalog.Active(chainID)
			out := make([]tokenOutput, len(tokens))
			for i, t := range tokens {
				out[i].SupportedToken = t
				if owner == "" {
					continue
				}
				balance, err := engine.Catalog.BalanceOf(ctx, t.Address, chainID, owner)
				if err != nil {
					return err
				}
				formatted, err := amount.ToDecimalString(balance, t.Decimals, precision)
				if err != nil {
					return err
				}
				out[i].Balance = balance
				out[i].Formatted = formatted
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Bool(flagValidate, false, "check configured decimals against on-chain metadata")
	cmd.Flags().String(flagOwner, "", "also print the balance of this address")
	cmd.Flags().Int(flagPrecision, defaultDisplayPrecision, "fractional digits shown for balances")

	return cmd
}
