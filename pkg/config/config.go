// Package config loads the genesis file of a bank.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/julianzamt/bankrun-counter/pkg/bank"
	"github.com/julianzamt/bankrun-counter/pkg/features"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFeature = errors.New("unknown feature gate")

type Airdrop struct {
	Pubkey   string `yaml:"pubkey"`
	Lamports uint64 `yaml:"lamports"`
}

// Token describes the mint the scenario disburses from.
type Token struct {
	Decimals uint8  `yaml:"decimals"`
	Supply   uint64 `yaml:"supply"`
}

type Genesis struct {
	LamportsPerSignature uint64    `yaml:"lamports_per_signature"`
	StartUnixTimestamp   int64     `yaml:"start_unix_timestamp"`
	ComputeUnitLimit     uint64    `yaml:"compute_unit_limit"`
	Workers              int       `yaml:"workers"`
	Features             []string  `yaml:"features"`
	Token                Token     `yaml:"token"`
	Airdrops             []Airdrop `yaml:"airdrops"`
}

func Default() *Genesis {
	cfg := bank.DefaultConfig()
	return &Genesis{
		LamportsPerSignature: cfg.LamportsPerSignature,
		ComputeUnitLimit:     cfg.ComputeUnitLimit,
		Workers:              cfg.Workers,
		Token:                Token{Decimals: 0, Supply: 100},
	}
}

// Load reads a genesis file. Fields missing from the file keep their
// defaults.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	genesis, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return genesis, nil
}

func Parse(data []byte) (*Genesis, error) {
	genesis := Default()
	err := yaml.Unmarshal(data, genesis)
	if err != nil {
		return nil, err
	}
	return genesis, genesis.Validate()
}

func (g *Genesis) Validate() error {
	for _, name := range g.Features {
		if _, ok := features.GateByName(name); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeature, name)
		}
	}
	for _, airdrop := range g.Airdrops {
		if _, err := solana.PublicKeyFromBase58(airdrop.Pubkey); err != nil {
			return fmt.Errorf("airdrop pubkey %q: %w", airdrop.Pubkey, err)
		}
	}
	if g.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", g.Workers)
	}
	return nil
}

// Apply copies the genesis settings onto cfg. Settings left at zero keep the
// value already in cfg.
func (g *Genesis) Apply(cfg *bank.Config) error {
	err := g.Validate()
	if err != nil {
		return err
	}

	cfg.LamportsPerSignature = g.LamportsPerSignature
	if g.StartUnixTimestamp != 0 {
		cfg.StartUnixTimestamp = g.StartUnixTimestamp
	}
	if g.ComputeUnitLimit != 0 {
		cfg.ComputeUnitLimit = g.ComputeUnitLimit
	}
	if g.Workers != 0 {
		cfg.Workers = g.Workers
	}

	if cfg.Features == nil {
		cfg.Features = features.NewFeaturesDefault()
	}
	for _, name := range g.Features {
		gate, _ := features.GateByName(name)
		cfg.Features.EnableFeature(gate, 0)
	}

	if len(g.Airdrops) > 0 && cfg.Airdrops == nil {
		cfg.Airdrops = make(map[solana.PublicKey]uint64, len(g.Airdrops))
	}
	for _, airdrop := range g.Airdrops {
		pubkey := solana.MustPublicKeyFromBase58(airdrop.Pubkey)
		cfg.Airdrops[pubkey] += airdrop.Lamports
	}
	return nil
}
