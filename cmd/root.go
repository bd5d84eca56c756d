package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	flagConfigPath     = "config"
	flagVerbose        = "verbose"
	flagLogLevel       = "log-level"
	flagMetricsAddress = "metrics-address"
	flagMetricsPort    = "metrics-port"
	flagKey            = "key"
	flagDeadline       = "deadline"
	flagWait           = "wait"
	flagConfirmations  = "confirmations"
	flagInterval       = "interval"
	flagOwner          = "owner"
	flagPrecision      = "precision"
	flagValidate       = "validate"
	flagSign           = "sign"
	flagDecimal        = "decimal"
)

// ExecutorKeyEnv holds the hex private key of the executor (spender) account.
const ExecutorKeyEnv = "EXECUTOR_PRIV_KEY"

func NewRootCmd() *cobra.Command {
	a := NewAppState()

	rootCmd := &cobra.Command{
		Use:   "permit2-distributor",
		Short: "Distribute ERC-20 tokens with Permit2 signatures across EVM chains",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.ConfigPath, flagConfigPath, "config.yaml", "file path of config file")
	rootCmd.PersistentFlags().BoolVarP(&a.Debug, flagVerbose, "v", false, "use this flag to set log level to `debug`")
	rootCmd.PersistentFlags().StringVar(&a.LogLevel, flagLogLevel, "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		Start(a),
		TransferCmd(a),
		BatchCmd(a),
		StatusCmd(a),
		TokensCmd(a),
		PermitCmd(a),
	)

	return rootCmd
}

func Execute() {
	_ = godotenv.Load()

	cobra.EnableCommandSorting = false
	rootCmd := NewRootCmd()
	rootCmd.SilenceUsage = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
