package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"denim/internal/domain"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string         `mapstructure:"home"` // e.g. $HOME/.denim
	Log      LogConfig      `mapstructure:"log"`
	Network  NetworkConfig  `mapstructure:"network"`
	Security SecurityConfig `mapstructure:"security"`
	History  HistoryConfig  `mapstructure:"history"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"` // empty means stderr
	Development bool   `mapstructure:"development"`
}

type NetworkConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"` // data port; control is Port+1
	Peer string `mapstructure:"peer"` // host:port to dial, optional
}

type SecurityConfig struct {
	Tier                  string        `mapstructure:"tier"`
	SignPassword          string        `mapstructure:"sign_password"`
	HandshakeTimeout      time.Duration `mapstructure:"handshake_timeout"`
	HandshakeStartTimeout time.Duration `mapstructure:"handshake_start_timeout"`
}

type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // e.g. 127.0.0.1:9400; empty disables
}

// NewViper returns a viper instance with denim's defaults and environment
// binding (DENIM_NETWORK_PORT and so on).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DENIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("home", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.development", false)
	v.SetDefault("network.host", "0.0.0.0")
	v.SetDefault("network.port", 9000)
	v.SetDefault("network.peer", "")
	v.SetDefault("security.tier", "standard")
	v.SetDefault("security.sign_password", "")
	v.SetDefault("security.handshake_timeout", "10s")
	v.SetDefault("security.handshake_start_timeout", "0s")
	v.SetDefault("history.enabled", true)
	v.SetDefault("metrics.listen", "")
	return v
}

// LoadConfig reads configFile (or denim.yaml in the home directory when
// configFile is empty) on top of v's defaults, flags and environment.
// A missing default config file is not an error.
func LoadConfig(v *viper.Viper, configFile string) (Config, error) {
	home, err := resolveHome(v.GetString("home"))
	if err != nil {
		return Config{}, err
	}
	v.Set("home", home)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("denim")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
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

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if c.Network.Port < 1 || c.Network.Port > 65534 {
		return fmt.Errorf("network.port %d: need a port below 65535 so port+1 is valid", c.Network.Port)
	}
	tier, err := domain.ParseTier(c.Security.Tier)
	if err != nil {
		return fmt.Errorf("security.tier: %w", err)
	}
	if tier == domain.TierSigned && c.Security.SignPassword == "" {
		return errors.New("security.sign_password is required for the signed tier")
	}
	if c.Security.HandshakeTimeout < 0 || c.Security.HandshakeStartTimeout < 0 {
		return errors.New("handshake timeouts must not be negative")
	}
	return nil
}

func resolveHome(home string) (string, error) {
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		home = filepath.Join(dir, ".denim")
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return "", err
	}
	return home, nil
}
