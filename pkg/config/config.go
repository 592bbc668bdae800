// Copyright 2025 Certen Protocol
//
// Node configuration loader: the recognized options, loaded from a YAML
// file with ${VAR_NAME} environment-variable substitution.

package config

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Value() time.Duration { return time.Duration(d) }

// BigInt wraps *big.Int for YAML unmarshaling: monetary and gas-station
// bounds are arbitrary precision, which the yaml scanner has no native
// decoder for, so values are read as decimal strings.
type BigInt struct {
	*big.Int
}

func (b *BigInt) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", s)
	}
	b.Int = v
	return nil
}

func (b BigInt) MarshalYAML() (interface{}, error) {
	if b.Int == nil {
		return "0", nil
	}
	return b.Int.String(), nil
}

// Config is the full set of recognized node options.
type Config struct {
	Dir string `yaml:"dir"`

	MaxGasPerViewTransaction BigInt   `yaml:"maxGasPerViewTransaction"`
	MaxPollingAttempts       int      `yaml:"maxPollingAttempts"`
	PollingDelay             Duration `yaml:"pollingDelay"`

	SignatureForRequests string `yaml:"signatureForRequests"`
	AllowUnsignedFaucet  bool   `yaml:"allowUnsignedFaucet"`
	IgnoreGasPrice       bool   `yaml:"ignoreGasPrice"`

	InitialSupply    BigInt `yaml:"initialSupply"`
	FinalSupply      BigInt `yaml:"finalSupply"`
	InitialRedSupply BigInt `yaml:"initialRedSupply"`

	// InitialInflation is scaled by 10^8.
	InitialInflation int64 `yaml:"initialInflation"`

	InitialGasPrice   BigInt `yaml:"initialGasPrice"`
	TargetGasAtReward BigInt `yaml:"targetGasAtReward"`
	Oblivion          int64  `yaml:"oblivion"`

	MaxErrorLength                  int `yaml:"maxErrorLength"`
	MaxDependencies                 int `yaml:"maxDependencies"`
	MaxCumulativeSizeOfDependencies int `yaml:"maxCumulativeSizeOfDependencies"`

	TicketForNewPoll       BigInt `yaml:"ticketForNewPoll"`
	PercentStaked          int64  `yaml:"percentStaked"`
	BuyerSurcharge         int64  `yaml:"buyerSurcharge"`
	SlashingForMisbehaving int64  `yaml:"slashingForMisbehaving"`
	SlashingForNotBehaving int64  `yaml:"slashingForNotBehaving"`

	ChainID     string    `yaml:"chainId"`
	GenesisTime time.Time `yaml:"genesisTime"`

	VerificationVersion int `yaml:"verificationVersion"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads path, substitutes ${VAR} references against the process
// environment, parses the result as YAML, and fills in defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a Config suitable for a fresh devnet: no supply
// bounds, faucet disabled.
func Default() *Config {
	return &Config{
		Dir:                             "chain",
		MaxGasPerViewTransaction:        BigInt{big.NewInt(100_000_000)},
		MaxPollingAttempts:              60,
		PollingDelay:                    Duration(10 * time.Second),
		SignatureForRequests:            "ed25519",
		InitialGasPrice:                 BigInt{big.NewInt(1)},
		TargetGasAtReward:               BigInt{big.NewInt(1_000_000)},
		Oblivion:                        250_000,
		MaxErrorLength:                  300,
		MaxDependencies:                 20,
		MaxCumulativeSizeOfDependencies: 10_000_000,
		PercentStaked:                   75,
		BuyerSurcharge:                  50,
		SlashingForMisbehaving:          1,
		SlashingForNotBehaving:          1,
		ChainID:                         "corechain",
		VerificationVersion:             0,
	}
}

// Validate reports whether cfg's values are internally consistent
// enough to start a node with: polling parameters must be positive,
// the signature algorithm recognized, and finalSupply must not be
// below initialSupply when both are set.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("config: dir must be set")
	}
	if c.MaxPollingAttempts <= 0 {
		return fmt.Errorf("config: maxPollingAttempts must be positive")
	}
	if c.PollingDelay.Value() <= 0 {
		return fmt.Errorf("config: pollingDelay must be positive")
	}
	switch c.SignatureForRequests {
	case "ed25519", "ed25519det", "sha256dsa", "qtesla1", "qtesla3", "empty":
	default:
		return fmt.Errorf("config: unrecognized signatureForRequests %q", c.SignatureForRequests)
	}
	if c.InitialSupply.Int != nil && c.FinalSupply.Int != nil && c.FinalSupply.Cmp(c.InitialSupply.Int) < 0 {
		return fmt.Errorf("config: finalSupply must not be below initialSupply")
	}
	return nil
}
