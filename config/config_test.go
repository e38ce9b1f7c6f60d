package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatechain/server/internal/models"
)

const (
	tokenAddr       = "0x1111111111111111111111111111111111111111"
	marketplaceAddr = "0x2222222222222222222222222222222222222222"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("REAL_ESTATE_TOKEN_CONTRACT_ADDRESS", tokenAddr)
	t.Setenv("REAL_ESTATE_MARKETPLACE_CONTRACT_ADDRESS", marketplaceAddr)
	t.Setenv("SMART_CONTRACT_ADDRESS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5250", cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:7545", cfg.Chain.ProviderURI)
	assert.Equal(t, uint64(1000000), cfg.Chain.VerifyGasLimit)
	assert.Equal(t, uint64(1000000), cfg.Chain.MintGasLimit)
	assert.Equal(t, 2*time.Minute, cfg.Chain.ReceiptTimeout)
	assert.Equal(t, "ipfs.io", cfg.Pinning.GatewayHost)
	assert.Equal(t, 3, cfg.Journal.MaxRetries)

	// Verification falls back to the token contract
	assert.Equal(t, tokenAddr, cfg.Chain.VerificationAddress)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{}
	cfg.Chain.VerificationAddress = tokenAddr
	cfg.Chain.TokenAddress = tokenAddr
	cfg.Chain.MarketplaceAddress = marketplaceAddr
	cfg.Chain.ReceiptTimeout = time.Minute
	cfg.Pinning.JWT = "jwt"
	assert.NoError(t, cfg.Validate())

	cfg.Chain.MarketplaceAddress = "not-an-address"
	cfg.Pinning.JWT = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REAL_ESTATE_MARKETPLACE_CONTRACT_ADDRESS")
	assert.Contains(t, err.Error(), "pinning credentials missing")
}

func TestConfig_NotificationFilters(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.MinPrice = "1000"
	cfg.Telegram.PropertyTypes = []string{"residential", " ", "2"}

	filters, err := cfg.NotificationFilters()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), filters.MinPrice)
	assert.Nil(t, filters.MaxPrice)
	assert.Equal(t, []models.PropertyType{models.PropertyTypeResidential, models.PropertyTypeAgricultural}, filters.PropertyTypes)

	cfg.Telegram.MaxPrice = "-5"
	_, err = cfg.NotificationFilters()
	assert.Error(t, err)
}

func TestLoadContractABIs(t *testing.T) {
	dir := t.TempDir()
	bare := `[{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`
	artifact := `{"contractName":"Market","abi":[{"type":"function","name":"buyProperty","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, RegistryABIFile), []byte(bare), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarketplaceABIFile), []byte(artifact), 0644))

	abis, err := LoadContractABIs(dir)
	require.NoError(t, err)
	assert.Nil(t, abis.Verification)
	assert.JSONEq(t, bare, string(abis.Registry))
	assert.Contains(t, string(abis.Marketplace), "buyProperty")

	empty, err := LoadContractABIs("")
	require.NoError(t, err)
	assert.Nil(t, empty.Registry)
}

func TestLoadContractABIs_InvalidArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VerificationABIFile), []byte(`{"contractName":"Verification"}`), 0644))

	_, err := LoadContractABIs(dir)
	assert.Error(t, err)
}
