package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"conclave/internal/services/session"
	"conclave/internal/services/trust"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home          string `mapstructure:"home"`      // config directory, e.g. $HOME/.conclave
	Store         string `mapstructure:"store"`     // file or sqlite
	Namespace     string `mapstructure:"namespace"` // property key namespace
	Passphrase    string `mapstructure:"passphrase"`
	RelayURL      string `mapstructure:"relay"` // relay base URL, e.g. http://127.0.0.1:8080
	Account       string `mapstructure:"account"`
	LogLevel      string `mapstructure:"log_level"`
	DedupCapacity int    `mapstructure:"dedup_capacity"`

	HTTP *http.Client `mapstructure:"-"` // optional; defaults to http.DefaultClient
}

// SetDefaults registers the default for every key LoadConfig reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("home", "")
	v.SetDefault("store", StoreFile)
	v.SetDefault("namespace", trust.DefaultNamespace)
	v.SetDefault("passphrase", "")
	v.SetDefault("relay", "")
	v.SetDefault("account", "default")
	v.SetDefault("log_level", "warn")
	v.SetDefault("dedup_capacity", session.DefaultDedupCapacity)
}

// LoadConfig resolves the configuration held by v.
//
// Steps:
//  1. Apply defaults and CONCLAVE_* environment variables.
//  2. Resolve the home directory (default ~/.conclave).
//  3. Read home/conclave.yaml when present; flags bound to v still win.
//  4. Unmarshal and validate.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("CONCLAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	home := v.GetString("home")
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home: %w", err)
		}
		home = filepath.Join(dir, ".conclave")
		v.Set("home", home)
	}

	v.SetConfigName("conclave")
	v.SetConfigType("yaml")
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreFile, StoreSQLite, c.Store)
	}
	if c.Home == "" {
		return errors.New("home directory is required")
	}
	if c.Account == "" {
		return errors.New("account is required")
	}
	if c.DedupCapacity < 0 {
		return fmt.Errorf("dedup_capacity must not be negative, got %d", c.DedupCapacity)
	}
	return nil
}
