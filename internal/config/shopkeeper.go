package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/interact"
	"github.com/udisondev/shopkeeper/internal/price"
	"github.com/udisondev/shopkeeper/internal/shop"
	"github.com/udisondev/shopkeeper/internal/trade"
)

// PathEnv overrides the config path passed on the command line.
const PathEnv = "SHOPKEEPER_CONFIG"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// StorageConfig selects where shops are persisted.
type StorageConfig struct {
	Driver     string `yaml:"driver"`      // postgres | sqlite
	SQLitePath string `yaml:"sqlite_path"` // used when driver=sqlite

	// AutosaveInterval — период полного сброса магазинов; 0 отключает.
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

// TaxConfig holds trade tax settings. UUIDs are kept as strings in YAML.
type TaxConfig struct {
	Rate    float64  `yaml:"rate"`    // [0,1)
	Account string   `yaml:"account"` // empty = налог сгорает
	Exempt  []string `yaml:"exempt"`
}

// InteractConfig combines tracker timings with the sneak policy.
type InteractConfig struct {
	interact.Config `yaml:",inline"`
	Policy          interact.Policy `yaml:"policy"`
}

// CacheConfig sizes the attached-shop lookup cache.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// EconomyConfig configures the ledger.
type EconomyConfig struct {
	AutoCreateAccounts bool `yaml:"auto_create_accounts"`
}

// Shopkeeper holds all configuration for the shop daemon.
type Shopkeeper struct {
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Economy  EconomyConfig  `yaml:"economy"`

	PriceLimit price.Rules    `yaml:"price_limit"`
	Tax        TaxConfig      `yaml:"tax"`
	Interact   InteractConfig `yaml:"interact"`
	Attached   CacheConfig    `yaml:"attached_cache"`

	PayUnlimitedOwner bool   `yaml:"pay_unlimited_owner"`
	UnlimitedOwner    string `yaml:"unlimited_owner"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"` // empty disables /metrics
	LogLevel    string `yaml:"log_level"`
}

// DefaultShopkeeper returns Shopkeeper config with sensible defaults.
func DefaultShopkeeper() Shopkeeper {
	mc := shop.DefaultConfig()
	return Shopkeeper{
		Storage: StorageConfig{
			Driver:           DriverPostgres,
			SQLitePath:       "shops.db",
			AutosaveInterval: 5 * time.Minute,
		},
		Database:   DefaultDatabase(),
		Economy:    EconomyConfig{AutoCreateAccounts: true},
		PriceLimit: mc.PriceRules,
		Interact: InteractConfig{
			Config: mc.Interact,
			Policy: mc.Policy,
		},
		Attached: CacheConfig{
			Size: mc.AttachedCacheSize,
			TTL:  mc.AttachedCacheTTL,
		},
		MetricsAddr: ":9102",
		LogLevel:    "info",
	}
}

// LoadShopkeeper loads shop daemon config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadShopkeeper(path string) (Shopkeeper, error) {
	cfg := DefaultShopkeeper()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field constraints.
func (c Shopkeeper) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Storage.AutosaveInterval < 0 {
		errs = append(errs, fmt.Errorf("storage.autosave_interval must be >= 0, got %s", c.Storage.AutosaveInterval))
	}

	if c.Tax.Rate < 0 || c.Tax.Rate >= 1 {
		errs = append(errs, fmt.Errorf("tax.rate must be in [0,1), got %v", c.Tax.Rate))
	}
	if _, err := parseOptionalUUID(c.Tax.Account); err != nil {
		errs = append(errs, fmt.Errorf("tax.account: %w", err))
	}
	for _, s := range c.Tax.Exempt {
		if _, err := uuid.Parse(s); err != nil {
			errs = append(errs, fmt.Errorf("tax.exempt %q: %w", s, err))
		}
	}
	if _, err := parseOptionalUUID(c.UnlimitedOwner); err != nil {
		errs = append(errs, fmt.Errorf("unlimited_owner: %w", err))
	}

	if c.PriceLimit.Min < 0 {
		errs = append(errs, fmt.Errorf("price_limit.min must be >= 0, got %v", c.PriceLimit.Min))
	}
	if c.PriceLimit.Max > 0 && c.PriceLimit.Max < c.PriceLimit.Min {
		errs = append(errs, fmt.Errorf("price_limit.max %v below min %v", c.PriceLimit.Max, c.PriceLimit.Min))
	}

	if c.Interact.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("interact.timeout must be positive, got %s", c.Interact.Timeout))
	}
	if err := c.Interact.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Attached.Size < 0 {
		errs = append(errs, fmt.Errorf("attached_cache.size must be >= 0, got %d", c.Attached.Size))
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the parsed log level, defaulting to Info.
func (c Shopkeeper) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ManagerConfig converts the file config into shop.Config.
func (c Shopkeeper) ManagerConfig() (shop.Config, error) {
	mc := shop.DefaultConfig()
	mc.PriceRules = c.PriceLimit
	mc.Interact = c.Interact.Config
	mc.Policy = c.Interact.Policy
	mc.AttachedCacheSize = c.Attached.Size
	mc.AttachedCacheTTL = c.Attached.TTL

	owner, err := parseOptionalUUID(c.UnlimitedOwner)
	if err != nil {
		return mc, fmt.Errorf("unlimited_owner: %w", err)
	}
	mc.UnlimitedOwner = owner

	opts := trade.DefaultOptions()
	opts.TaxRate = c.Tax.Rate
	opts.PayUnlimitedOwner = c.PayUnlimitedOwner
	if opts.TaxAccount, err = parseOptionalUUID(c.Tax.Account); err != nil {
		return mc, fmt.Errorf("tax.account: %w", err)
	}
	for _, s := range c.Tax.Exempt {
		id, err := uuid.Parse(s)
		if err != nil {
			return mc, fmt.Errorf("tax.exempt %q: %w", s, err)
		}
		opts.Exempt = append(opts.Exempt, id)
	}
	mc.Trade = opts

	return mc, nil
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
