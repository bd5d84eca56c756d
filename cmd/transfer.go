package cmd

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/catalog"
	"github.com/strangelove-ventures/permit2-distributor/transfer"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// TransferInput is the on-disk shape of one transfer request. Token is resolved against the
// catalog; unknown tokens are kept inactive so the filters reject them.
type TransferInput struct {
	ChainID  types.ChainID       `json:"chainId"`
	Token    string              `json:"token"`
	From     string              `json:"from"`
	To       string              `json:"to"`
	Amount   string              `json:"amount"`
	Deadline uint64              `json:"deadline,omitempty"`
	Permit   types.PermitPackage `json:"permit"`
}

// transferOutput is printed for every executed request.
type transferOutput struct {
	TxHash      string `json:"txHash"`
	Success     bool   `json:"success"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ToRequest resolves the input against the catalog. With decimal set, Amount is a human
// decimal string and is converted with the token's decimals.
func (in TransferInput) ToRequest(cat *catalog.Catalog, decimal bool) (types.TransferRequest, error) {
	token, lookupErr := cat.Get(in.Token, in.ChainID)
	if lookupErr != nil {
		token = types.SupportedToken{Address: in.Token, ChainID: in.ChainID}
	}
	amt := in.Amount
	if decimal {
		if lookupErr != nil {
			return types.TransferRequest{}, lookupErr
		}
		var err error
		amt, err = amount.ToBaseUnits(in.Amount, token.Decimals)
		if err != nil {
			return types.TransferRequest{}, err
		}
	}
	return types.TransferRequest{
		Token:    token,
		From:     in.From,
		To:       in.To,
		Amount:   amt,
		Permit:   in.Permit,
		Deadline: in.Deadline,
	}, nil
}

// rawRequest keeps the input as given, for reporting an item that could not be converted.
func (in TransferInput) rawRequest() types.TransferRequest {
	return types.TransferRequest{
		Token:    types.SupportedToken{Address: in.Token, ChainID: in.ChainID},
		From:     in.From,
		To:       in.To,
		Amount:   in.Amount,
		Permit:   in.Permit,
		Deadline: in.Deadline,
	}
}

func TransferCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer [request-file]",
		Short: "Execute one permit-backed transfer",
		Long:  "Submits the permit and the delegated transfer described by a JSON request file (\"-\" reads stdin).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var input TransferInput
			if err := readJSON(cmd, args[0], &input); err != nil {
				return err
			}
			key, err := executorKey(cmd)
			if err != nil {
				return err
			}
			decimal, err := cmd.Flags().GetBool(flagDecimal)
			if err != nil {
				return err
			}

			engine, err := NewEngine(ctx, a.Config, a.Logger, EngineOptions{})
			if err != nil {
				return err
			}
			defer engine.Close()

			req, err := input.ToRequest(engine.Catalog, decimal)
			if err != nil {
				return err
			}
			res, err := runTransfer(ctx, engine, req, key)
			if err := writeJSON(cmd.OutOrStdout(), newTransferOutput(engine, req, res)); err != nil {
				return err
			}
			return err
		},
	}

	cmd.Flags().String(flagKey, "", "hex private key of the executor; defaults to $"+ExecutorKeyEnv)
	cmd.Flags().Bool(flagDecimal, false, "amount is a decimal string in whole tokens")

	return cmd
}

// runTransfer filters and executes a single request and records the outcome.
func runTransfer(ctx context.Context, engine *Engine, req types.TransferRequest, key *ecdsa.PrivateKey) (types.TransferResult, error) {
	var res types.TransferResult
	var err error
	if filtered, reason := engine.Filters.Screen(ctx, &req); filtered {
		err = fmt.Errorf("%w: %s", transfer.ErrFiltered, reason)
		res.Err = err
	} else {
		res, err = engine.Executor.Execute(ctx, req, key)
	}
	if lerr := engine.Ledger.RecordTransfer(context.WithoutCancel(ctx), req, res); lerr != nil {
		engine.logger.Error("Failed to record transfer", "error", lerr)
	}
	return res, err
}

func BatchCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [requests-file]",
		Short: "Execute a list of permit-backed transfers sequentially",
		Long:  "Runs every request of a JSON array in order. Failed items are reported and do not stop the batch.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var inputs []TransferInput
			if err := readJSON(cmd, args[0], &inputs); err != nil {
				return err
			}
			key, err := executorKey(cmd)
			if err != nil {
				return err
			}
			decimal, err := cmd.Flags().GetBool(flagDecimal)
			if err != nil {
				return err
			}

			engine, err := NewEngine(ctx, a.Config, a.Logger, EngineOptions{})
			if err != nil {
				return err
			}
			defer engine.Close()

			reqs, result, err := RunBatch(ctx, engine, inputs, key, decimal)
			if err != nil {
				return err
			}

			outputs := make([]transferOutput, len(result.Results))
			for i, res := range result.Results {
				outputs[i] = newTransferOutput(engine, reqs[i], res)
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				SuccessCount int              `json:"successCount"`
				TxHashes     []string         `json:"txHashes"`
				Results      []transferOutput `json:"results"`
			}{result.SuccessCount, result.TxHashes, outputs})
		},
	}

	cmd.Flags().String(flagKey, "", "hex private key of the executor; defaults to $"+ExecutorKeyEnv)
	cmd.Flags().Bool(flagDecimal, false, "amounts are decimal strings in whole tokens")

	return cmd
}

// RunBatch converts every input and runs them as one sequential batch. An input that cannot
// be converted fails in its own slot and the remaining inputs still run.
func RunBatch(ctx context.Context, engine *Engine, inputs []TransferInput, key *ecdsa.PrivateKey, decimal bool) ([]types.TransferRequest, types.BatchResult, error) {
	items := make([]transfer.Item, len(inputs))
	reqs := make([]types.TransferRequest, len(inputs))
	for i, in := range inputs {
		req, err := in.ToRequest(engine.Catalog, decimal)
		if err != nil {
			req = in.rawRequest()
			items[i].Err = fmt.Errorf("request %d: %w", i, err)
		}
		items[i].Request = req
		reqs[i] = req
	}
	result, err := engine.Batch.ExecuteItems(ctx, items, key)
	return reqs, result, err
}

func newTransferOutput(engine *Engine, req types.TransferRequest, res types.TransferResult) transferOutput {
	out := transferOutput{
		TxHash:      res.TxHash,
		Success:     res.Success,
		BlockNumber: res.BlockNumber,
		GasUsed:     res.GasUsed,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if res.TxHash != "" {
		if info, err := engine.Registry.Resolve(req.Token.ChainID); err == nil {
			out.ExplorerURL = info.TxURL(res.TxHash)
		}
	}
	return out
}

func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
