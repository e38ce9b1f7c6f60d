package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"estatechain/server/internal/models"
)

type Config struct {
	Server struct {
		Port string `env:"PORT" envDefault:"5250"`

		// SQLite file holding the local journal of property transitions
		DatabasePath string `env:"DATABASE_PATH" envDefault:"database/estate.db"`

		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Chain struct {
		ProviderURI string `env:"WEB3_PROVIDER_URI" envDefault:"http://127.0.0.1:7545"`

		// Verification contract; falls back to the token contract when unset
		VerificationAddress string `env:"SMART_CONTRACT_ADDRESS"`
		TokenAddress        string `env:"REAL_ESTATE_TOKEN_CONTRACT_ADDRESS"`
		MarketplaceAddress  string `env:"REAL_ESTATE_MARKETPLACE_CONTRACT_ADDRESS"`

		// Optional directory with ABI files overriding the built-in ones
		ABIDir string `env:"ABI_DIR"`

		VerifyGasLimit uint64 `env:"VERIFY_GAS_LIMIT" envDefault:"1000000"`
		MintGasLimit   uint64 `env:"MINT_GAS_LIMIT" envDefault:"1000000"`

		// Upper bound on waiting for a transaction receipt
		ReceiptTimeout      time.Duration `env:"RECEIPT_TIMEOUT" envDefault:"2m"`
		ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"1s"`
	}

	Pinning struct {
		APIURL      string        `env:"PINATA_API_URL" envDefault:"https://api.pinata.cloud"`
		APIKey      string        `env:"PINATA_API_KEY"`
		SecretKey   string        `env:"PINATA_SECRET_API_KEY"`
		JWT         string        `env:"PINATA_JWT"`
		GatewayHost string        `env:"IPFS_GATEWAY_HOST" envDefault:"ipfs.io"`
		Timeout     time.Duration `env:"PIN_TIMEOUT" envDefault:"60s"`
	}

	Journal struct {
		// Number of events buffered before pushes are dropped
		QueueSize int `env:"EVENT_QUEUE_SIZE" envDefault:"100"`

		MaxRetries int           `env:"JOURNAL_MAX_RETRIES" envDefault:"3"`
		RetryDelay time.Duration `env:"JOURNAL_RETRY_DELAY" envDefault:"1s"`
	}

	Sync struct {
		Enabled  bool          `env:"CHAIN_SYNC_ENABLED" envDefault:"true"`
		Interval time.Duration `env:"CHAIN_SYNC_INTERVAL" envDefault:"5m"`
	}

	Telegram struct {
		Enabled       bool     `env:"TELEGRAM_ENABLED" envDefault:"false"`
		BotToken      string   `env:"TELEGRAM_BOT_TOKEN"`
		ChatID        string   `env:"TELEGRAM_CHAT_ID"`
		MinPrice      string   `env:"TELEGRAM_MIN_PRICE"`
		MaxPrice      string   `env:"TELEGRAM_MAX_PRICE"`
		PropertyTypes []string `env:"TELEGRAM_PROPERTY_TYPES" envSeparator:","`
	}
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Chain.VerificationAddress == "" {
		cfg.Chain.VerificationAddress = cfg.Chain.TokenAddress
	}
	return cfg, nil
}

// Validate checks the settings the workflow cannot run without.
func (c *Config) Validate() error {
	var errs []error

	addresses := map[string]string{
		"SMART_CONTRACT_ADDRESS":                  c.Chain.VerificationAddress,
		"REAL_ESTATE_TOKEN_CONTRACT_ADDRESS":       c.Chain.TokenAddress,
		"REAL_ESTATE_MARKETPLACE_CONTRACT_ADDRESS": c.Chain.MarketplaceAddress,
	}
	for name, value := range addresses {
		if !common.IsHexAddress(value) {
			errs = append(errs, fmt.Errorf("%s must be a hex address, got %q", name, value))
		}
	}

	if c.Pinning.JWT == "" && (c.Pinning.APIKey == "" || c.Pinning.SecretKey == "") {
		errs = append(errs, errors.New("pinning credentials missing: set PINATA_JWT or PINATA_API_KEY and PINATA_SECRET_API_KEY"))
	}

	if c.Chain.ReceiptTimeout <= 0 {
		errs = append(errs, errors.New("RECEIPT_TIMEOUT must be positive"))
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_ENABLED requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID"))
	}

	return errors.Join(errs...)
}

// NotificationFilters converts the Telegram filter settings.
func (c *Config) NotificationFilters() (*models.NotificationFilters, error) {
	filters := &models.NotificationFilters{}

	var err error
	if filters.MinPrice, err = parsePrice("TELEGRAM_MIN_PRICE", c.Telegram.MinPrice); err != nil {
		return nil, err
	}
	if filters.MaxPrice, err = parsePrice("TELEGRAM_MAX_PRICE", c.Telegram.MaxPrice); err != nil {
		return nil, err
	}

	for _, name := range c.Telegram.PropertyTypes {
		if strings.TrimSpace(name) == "" {
			continue
		}
		t, err := models.ParsePropertyType(name)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_PROPERTY_TYPES: %w", err)
		}
		filters.PropertyTypes = append(filters.PropertyTypes, t)
	}

	return filters, nil
}

func parsePrice(name, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || price.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer, got %q", name, value)
	}
	return price, nil
}
