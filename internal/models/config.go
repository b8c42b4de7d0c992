package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// LedgerConfig holds business-logic defaults and the retry policy for
// serialization conflicts.
type LedgerConfig struct {
	DefaultCurrency string
	DefaultTaxRate  decimal.Decimal
	TaxRatesFile    string
	MaxRetries      int
	RetryBackoff    time.Duration
}
