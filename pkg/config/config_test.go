// Copyright 2025 Certen Protocol

package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
dir: /var/lib/corechain
chainId: devnet
initialSupply: "1000000000000000000"
pollingDelay: 5s
maxDependencies: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dir != "/var/lib/corechain" || cfg.ChainID != "devnet" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PollingDelay.Value() != 5*time.Second {
		t.Fatalf("polling delay: got %s", cfg.PollingDelay.Value())
	}
	if cfg.MaxDependencies != 7 {
		t.Fatalf("maxDependencies: got %d", cfg.MaxDependencies)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if cfg.InitialSupply.Cmp(want) != 0 {
		t.Fatalf("initialSupply: got %s", cfg.InitialSupply)
	}
	// Untouched options keep their defaults.
	if cfg.SignatureForRequests != "ed25519" {
		t.Fatalf("default signature algorithm lost: %s", cfg.SignatureForRequests)
	}
	if cfg.MaxErrorLength != 300 {
		t.Fatalf("default maxErrorLength lost: %d", cfg.MaxErrorLength)
	}
}

func TestLoadSubstitutesEnvironmentVariables(t *testing.T) {
	t.Setenv("CORECHAIN_TEST_CHAIN", "env-chain")
	path := writeConfig(t, "chainId: ${CORECHAIN_TEST_CHAIN:-fallback}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChainID != "env-chain" {
		t.Fatalf("chainId: got %s, want env-chain", cfg.ChainID)
	}
}

func TestLoadUsesDefaultWhenEnvVarUnset(t *testing.T) {
	path := writeConfig(t, "chainId: ${CORECHAIN_UNSET_VAR:-fallback}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChainID != "fallback" {
		t.Fatalf("chainId: got %s, want fallback", cfg.ChainID)
	}
}

func TestValidateRejectsUnknownSignatureAlgorithm(t *testing.T) {
	cfg := Default()
	cfg.SignatureForRequests = "rot13"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRejectsShrinkingSupply(t *testing.T) {
	cfg := Default()
	cfg.InitialSupply = BigInt{big.NewInt(100)}
	cfg.FinalSupply = BigInt{big.NewInt(50)}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when finalSupply < initialSupply")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
