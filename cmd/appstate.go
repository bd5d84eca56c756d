package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/ethereum"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// AppState is the modifiable state of the application.
type AppState struct {
	// Config is the parsed config file
	Config *types.Config

	// ConfigPath is the path to the config file
	ConfigPath string

	// Debug is true if the debug flag is set
	Debug bool

	// LogLevel is the log level to use
	LogLevel string

	Logger log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState initializes the logger and loads the config file.
func (a *AppState) InitAppState() {
	a.InitLogger()
	a.loadConfigFile()
}

func (a *AppState) InitLogger() {
	level := zerolog.InfoLevel
	if a.Debug {
		level = zerolog.DebugLevel
	} else if a.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(a.LogLevel)
		if err == nil {
			level = parsed
		}
	}
	a.Logger = log.NewLogger(os.Stdout, log.LevelOption(level))
}

// loadConfigFile exits the process when the config cannot be used.
func (a *AppState) loadConfigFile() {
	if a.ConfigPath == "" {
		a.Logger.Error("No config file specified. Use the --config flag")
		os.Exit(1)
	}
	cfg, err := ParseConfig(a.ConfigPath)
	if err != nil {
		a.Logger.Error("Unable to parse config file", "location", a.ConfigPath, "error", err)
		os.Exit(1)
	}
	a.Logger.Info("Successfully parsed config file", "location", a.ConfigPath)
	a.Config = cfg
}

// ParseConfig reads a YAML config file and decodes every chain by its family.
func ParseConfig(file string) (*types.Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return DecodeConfig(data)
}

func DecodeConfig(data []byte) (*types.Config, error) {
	var wrapper types.ConfigWrapper
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg := types.Config{
		Chains:                make(map[string]types.ChainConfig, len(wrapper.Chains)),
		Tokens:                wrapper.Tokens,
		ValidateTokensOnStart: wrapper.ValidateTokensOnStart,
		Filters:               wrapper.Filters,
		Ledger:                wrapper.Ledger,
		API:                   wrapper.API,
	}

	for name, raw := range wrapper.Chains {
		family, _ := raw["family"].(string)
		if family == "" {
			family = ethereum.Family
		}
		delete(raw, "family")

		yamlbz, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", name, err)
		}

		switch family {
		case ethereum.Family:
			var cc ethereum.ChainConfig
			if err := yaml.Unmarshal(yamlbz, &cc); err != nil {
				return nil, fmt.Errorf("chain %s: %w", name, err)
			}
			cfg.Chains[name] = &cc
		default:
			return nil, fmt.Errorf("chain %s: unsupported family %q", name, family)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
