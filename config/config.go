package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Network       string `toml:"Network"`
	ChainID       uint32 `toml:"ChainID"`

	Fees      Fees      `toml:"Fees"`
	RateLimit RateLimit `toml:"RateLimit"`
	Genesis   Genesis   `toml:"Genesis"`
}

// Fees are the admission fee policy knobs.
type Fees struct {
	MinRatePerByte            uint64 `toml:"MinRatePerByte"`
	MinFee                    uint64 `toml:"MinFee"`
	ContractPublishMultiplier uint64 `toml:"ContractPublishMultiplier"`
}

// RateLimit bounds transaction submissions per client.
type RateLimit struct {
	SubmitPerMinute float64 `toml:"SubmitPerMinute"`
	SubmitBurst     int     `toml:"SubmitBurst"`
}

// Genesis seeds state on first start.
type Genesis struct {
	TransferFeeRate uint64       `toml:"TransferFeeRate"`
	Allocations     []Allocation `toml:"Allocations"`
}

// Allocation funds one principal at genesis.
type Allocation struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
	Nonce   uint64 `toml:"Nonce"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := defaults()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddress: ":20443",
		DataDir:       "./data",
		Network:       "mainnet",
		ChainID:       1,
		Fees: Fees{
			MinRatePerByte:            1,
			MinFee:                    180,
			ContractPublishMultiplier: 2,
		},
		RateLimit: RateLimit{
			SubmitPerMinute: 60,
			SubmitBurst:     10,
		},
	}
}

func createDefault(path string) (*Config, error) {
	cfg := defaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet":
	default:
		return fmt.Errorf("unknown network %q (want mainnet or testnet)", c.Network)
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("ListenAddress must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	return nil
}
