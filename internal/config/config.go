package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tonkeeper/tongo/ton"
)

type Config struct {
	// Accounts
	OwnerAddress   string
	LedgerAddress  string
	TokenAddress   string
	OwnerPublicKey string // hex

	// Token service
	TokenAPIURL string
	TokenAPIKey string

	// HTTP
	HTTPPort int

	// Database
	DBPath string

	// Telegram
	BotToken        string
	OwnerChatID     int64
	NotifyQueueSize int
}

func Load() *Config {
	return &Config{
		// Accounts
		OwnerAddress:   getEnv("OWNER_ADDRESS", ""),
		LedgerAddress:  getEnv("LEDGER_ADDRESS", ""),
		TokenAddress:   getEnv("TOKEN_ADDRESS", ""),
		OwnerPublicKey: strings.TrimPrefix(getEnv("OWNER_PUBLIC_KEY", ""), "0x"),

		// Token service
		TokenAPIURL: strings.TrimSuffix(getEnv("TOKEN_API_URL", ""), "/"),
		TokenAPIKey: getEnv("TOKEN_API_KEY", ""),

		// HTTP
		HTTPPort: getEnvInt("HTTP_PORT", 8080),

		// Database
		DBPath: getEnv("DB_PATH", "./ledger.db"),

		// Telegram
		BotToken:        getEnv("BOT_TOKEN", ""),
		OwnerChatID:     getEnvInt64("OWNER_CHAT_ID", 0),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 100),
	}
}

// Accounts holds the parsed account settings
type Accounts struct {
	Owner          ton.AccountID
	Ledger         ton.AccountID
	Token          ton.AccountID
	OwnerPublicKey []byte
}

// ParseAccounts validates and parses the account settings
func (c *Config) ParseAccounts() (*Accounts, error) {
	var errs []error
	var acc Accounts

	parse := func(name, value string, dst *ton.AccountID) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			return
		}
		id, err := ton.ParseAccountID(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = id
	}

	parse("OWNER_ADDRESS", c.OwnerAddress, &acc.Owner)
	parse("LEDGER_ADDRESS", c.LedgerAddress, &acc.Ledger)
	parse("TOKEN_ADDRESS", c.TokenAddress, &acc.Token)

	if c.OwnerPublicKey == "" {
		errs = append(errs, errors.New("OWNER_PUBLIC_KEY is required"))
	} else if key, err := hex.DecodeString(c.OwnerPublicKey); err != nil {
		errs = append(errs, fmt.Errorf("OWNER_PUBLIC_KEY: %w", err))
	} else {
		acc.OwnerPublicKey = key
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &acc, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
