package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/gregtusar/perptrader/pkg/secrets"
	"github.com/gregtusar/perptrader/pkg/venue"
)

const (
	EnvVar     = "PERP_ENV"
	DefaultEnv = "testnet"
	envPrefix  = "PERP"
)

var privateKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

type Config struct {
	Env           string            `mapstructure:"-"`
	Account       AccountConfig     `mapstructure:"account"`
	DefaultSize   DefaultSizeConfig `mapstructure:"default_size"`
	DefaultMargin ValueConfig       `mapstructure:"default_margin"`
	DefaultAsset  ValueConfig       `mapstructure:"default_asset"`
	Network       NetworkConfig     `mapstructure:"network"`
	Journal       JournalConfig     `mapstructure:"journal"`
	Monitor       MonitorConfig     `mapstructure:"monitor"`
	Logging       LoggingConfig     `mapstructure:"logging"`
	GCP           GCPConfig         `mapstructure:"gcp"`
}

type AccountConfig struct {
	PrivateKey   string `mapstructure:"private_key"`
	VaultAddress string `mapstructure:"vault_address"`
}

// String keeps the private key out of logs and error messages.
func (a AccountConfig) String() string {
	key := "unset"
	if a.PrivateKey != "" {
		key = "set"
	}
	return fmt.Sprintf("account(key=%s vault=%q)", key, a.VaultAddress)
}

type DefaultSizeConfig struct {
	Type  string `mapstructure:"type"`
	Value string `mapstructure:"value"`
}

type ValueConfig struct {
	Value string `mapstructure:"value"`
}

type NetworkConfig struct {
	API       string  `mapstructure:"api"`
	WS        string  `mapstructure:"ws"`
	Timeout   int     `mapstructure:"timeout"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

func (n NetworkConfig) TimeoutDuration() time.Duration {
	return time.Duration(n.Timeout) * time.Second
}

// WSURL falls back to the websocket endpoint of the REST base.
func (n NetworkConfig) WSURL() string {
	if n.WS != "" {
		return n.WS
	}
	return venue.WSURL(n.API)
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

type MonitorConfig struct {
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

// Load reads <dir>/default.yaml, merges <dir>/<env>.yaml over it, then applies
// PERP_* environment overrides. A .env file in the working directory is
// loaded first when present. An empty env falls back to $PERP_ENV, then
// testnet.
func Load(dir, env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	if env == "" {
		env = os.Getenv(EnvVar)
	}
	if env == "" {
		env = DefaultEnv
	}
	if dir == "" {
		dir = "config"
	}

	v := viper.New()
	setDefaults(v, env)

	if err := mergeFile(v, filepath.Join(dir, "default.yaml")); err != nil {
		return nil, err
	}
	if err := mergeFile(v, filepath.Join(dir, env+".yaml")); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Env = env
	return &cfg, nil
}

// mergeFile layers one yaml file over the current settings. Missing files are
// skipped.
func mergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("account.private_key", "")
	v.SetDefault("account.vault_address", "")

	v.SetDefault("default_size.type", "notional")
	v.SetDefault("default_size.value", "")
	v.SetDefault("default_margin.value", "cross")
	v.SetDefault("default_asset.value", "")

	api := venue.TestnetAPI
	if env == "mainnet" {
		api = venue.MainnetAPI
	}
	v.SetDefault("network.api", api)
	v.SetDefault("network.ws", "")
	v.SetDefault("network.timeout", int(venue.DefaultTimeout/time.Second))
	v.SetDefault("network.rate_limit", venue.DefaultRateLimit)

	v.SetDefault("journal.path", "./data/journal")

	v.SetDefault("monitor.port", 0)
	v.SetDefault("monitor.jwt_secret", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.credentials_file", "")

	names := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.private_key", names.PrivateKey)
	v.SetDefault("gcp.secret_names.vault_address", names.VaultAddress)
	v.SetDefault("gcp.secret_names.jwt_secret", names.JWTSecret)
}

// Validate checks every value whose format is known. The private key is only
// checked when present; RequireKey enforces it for commands that sign or
// query the account.
func (c *Config) Validate() error {
	if c.Account.PrivateKey != "" && !privateKeyPattern.MatchString(c.Account.PrivateKey) {
		return errors.New("account.private_key must be 0x followed by 64 hex characters")
	}
	if c.Account.VaultAddress != "" && !common.IsHexAddress(c.Account.VaultAddress) {
		return fmt.Errorf("account.vault_address %q is not an address", c.Account.VaultAddress)
	}
	switch c.DefaultMargin.Value {
	case "cross", "isolated":
	default:
		return fmt.Errorf("default_margin.value %q: want cross or isolated", c.DefaultMargin.Value)
	}
	switch c.DefaultSize.Type {
	case "risk", "notional":
	default:
		return fmt.Errorf("default_size.type %q: want risk or notional", c.DefaultSize.Type)
	}
	if c.Network.API == "" {
		return errors.New("network.api is required")
	}
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout %d: must be positive", c.Network.Timeout)
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit %v: must not be negative", c.Network.RateLimit)
	}
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("monitor.port %d: out of range", c.Monitor.Port)
	}
	return nil
}

func (c *Config) RequireKey() error {
	if c.Account.PrivateKey == "" {
		return errors.New("account.private_key is not set (PERP_ACCOUNT_PRIVATE_KEY or gcp.use_secrets)")
	}
	return nil
}

// ResolveSecrets fills unset account values from the secret store.
func (c *Config) ResolveSecrets(ctx context.Context, store secrets.Accessor, logger *logrus.Logger) error {
	names := c.GCP.SecretNames
	if c.Account.PrivateKey == "" {
		key, err := store.GetSecret(ctx, names.PrivateKey)
		if err != nil {
			return fmt.Errorf("private key: %w", err)
		}
		c.Account.PrivateKey = key
	}
	// The vault and monitor secret are optional.
	if c.Account.VaultAddress == "" && names.VaultAddress != "" {
		if vault, err := store.GetSecret(ctx, names.VaultAddress); err == nil {
			c.Account.VaultAddress = vault
		} else {
			logger.WithError(err).Debug("no vault address secret")
		}
	}
	if c.Monitor.Port > 0 && c.Monitor.JWTSecret == "" && names.JWTSecret != "" {
		if secret, err := store.GetSecret(ctx, names.JWTSecret); err == nil {
			c.Monitor.JWTSecret = secret
		} else {
			logger.WithError(err).Debug("no monitor jwt secret")
		}
	}
	return nil
}

// LoadSecrets resolves secrets from GCP Secret Manager when enabled.
func (c *Config) LoadSecrets(ctx context.Context, logger *logrus.Logger) error {
	if !c.GCP.UseSecrets || c.GCP.ProjectID == "" {
		return nil
	}
	manager, err := secrets.NewGCPSecretManager(ctx, c.GCP.ProjectID, c.GCP.CredentialsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer manager.Close()

	if err := c.ResolveSecrets(ctx, manager, logger); err != nil {
		return fmt.Errorf("error loading secrets from GCP: %w", err)
	}
	logger.Info("loaded secrets from GCP Secret Manager")
	return nil
}

// NewLogger builds the process logger from the logging section. The returned
// closer releases the log file, if any.
func (l LoggingConfig) NewLogger() (*logrus.Logger, func() error, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging.level: %w", err)
	}
	logger.SetLevel(level)

	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("logging.format %q: want text or json", l.Format)
	}

	closer := func() error { return nil }
	if l.File != "" {
		f, err := os.OpenFile(l.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f.Close
	} else {
		logger.SetOutput(os.Stderr)
	}
	return logger, closer, nil
}
