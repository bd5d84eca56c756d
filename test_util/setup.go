package testutil

import (
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/strangelove-ventures/permit2-distributor/cmd"
	"github.com/strangelove-ventures/permit2-distributor/ethereum"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// SepoliaUSDC is Circle's USDC deployment on Sepolia.
const SepoliaUSDC = "0x1c7d4b196cb0c7b01d743fbc6116a902379c7238"

// GetEnvOrDefault returns the environment variable value or a default if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func init() {
	// Try to load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("../.env")
	}
}

// ConfigSetup builds an app state against public Sepolia and Base Sepolia endpoints.
// Connections are opened lazily, so only tests that read chain state need the network.
func ConfigSetup(t *testing.T) (a *cmd.AppState, reg *registry.Registry) {
	t.Helper()

	var testConfig = types.Config{
		Chains: map[string]types.ChainConfig{
			"sepolia": &ethereum.ChainConfig{
				ChainID:       11155111,
				NetworkName:   "Sepolia",
				RPC:           GetEnvOrDefault("SEPOLIA_RPC", "https://ethereum-sepolia-rpc.publicnode.com"),
				BlockExplorer: "https://sepolia.etherscan.io",
			},
			"base-sepolia": &ethereum.ChainConfig{
				ChainID:       84532,
				NetworkName:   "Base Sepolia",
				RPC:           GetEnvOrDefault("BASE_SEPOLIA_RPC", "https://base-sepolia-rpc.publicnode.com"),
				BlockExplorer: "https://sepolia.basescan.org",
			},
		},
		Tokens: []types.SupportedToken{
			{
				Address:               SepoliaUSDC,
				Symbol:                "USDC",
				Name:                  "USDC",
				Decimals:              6,
				ChainID:               11155111,
				IsActive:              true,
				MinDistributionAmount: "1000",
			},
		},
	}
	require.NoError(t, testConfig.Validate())

	a = cmd.NewAppState()
	a.LogLevel = "debug"
	a.InitLogger()
	a.Config = &testConfig

	reg, err := registry.New(a.Config.Chains, a.Logger)
	require.NoError(t, err, "Error creating registry")
	t.Cleanup(reg.Close)

	return a, reg
}
