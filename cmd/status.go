package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

func StatusCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [chain-id] [tx-hash]",
		Short: "Report whether a transaction is pending, confirmed or failed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := types.ParseChainID(args[0])
			if err != nil {
				return fmt.Errorf("invalid chain id %q: %w", args[0], err)
			}
			txHash := args[1]

			wait, err := cmd.Flags().GetDuration(flagWait)
			if err != nil {
				return err
			}
			confirmations, err := cmd.Flags().GetUint64(flagConfirmations)
			if err != nil {
				return err
			}
			interval, err := cmd.Flags().GetDuration(flagInterval)
			if err != nil {
				return err
			}

			engine, err := NewEngine(cmd.Context(), a.Config, a.Logger, EngineOptions{})
			if err != nil {
				return err
			}
			defer engine.Close()

			var status types.TxStatus
			if wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				status, err = engine.Monitor.WaitForFinality(ctx, txHash, chainID, confirmations, interval)
			} else {
				status, err = engine.Monitor.Status(cmd.Context(), txHash, chainID)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}

	cmd.Flags().Duration(flagWait, 0, "wait up to this long for the transaction to reach --confirmations")
	cmd.Flags().Uint64(flagConfirmations, 1, "confirmations required when waiting")
	cmd.Flags().Duration(flagInterval, 0, "poll interval when waiting; defaults to the chain's receipt poll interval")

	return cmd
}
