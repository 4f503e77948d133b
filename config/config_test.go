package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":20443", cfg.ListenAddress)
	require.Equal(t, "mainnet", cfg.Network)
	require.Equal(t, uint32(1), cfg.ChainID)
	require.Equal(t, uint64(180), cfg.Fees.MinFee)

	// The default file was written and loads back identically.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
ListenAddress = ":8080"
DataDir = "/tmp/quarry"
Network = "testnet"
ChainID = 2147483648

[Fees]
MinRatePerByte = 2
MinFee = 500
ContractPublishMultiplier = 3

[RateLimit]
SubmitPerMinute = 120.0
SubmitBurst = 20

[Genesis]
TransferFeeRate = 5

[[Genesis.Allocations]]
Address = "tqry1abc"
Balance = "1000000"
Nonce = 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "testnet", cfg.Network)
	require.Equal(t, uint64(500), cfg.Fees.MinFee)
	require.Equal(t, uint64(5), cfg.Genesis.TransferFeeRate)
	require.Len(t, cfg.Genesis.Allocations, 1)
	require.Equal(t, "1000000", cfg.Genesis.Allocations[0].Balance)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	require.NoError(t, cfg.Validate())

	bad := defaults()
	bad.Network = "devnet"
	require.Error(t, bad.Validate())

	bad = defaults()
	bad.ListenAddress = ""
	require.Error(t, bad.Validate())

	bad = defaults()
	bad.DataDir = ""
	require.Error(t, bad.Validate())
}
