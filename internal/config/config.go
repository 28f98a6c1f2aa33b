// Package config implements the configuration surface: YAML configuration
// with environment-variable overrides and hot-reload of the static
// provider list.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arcmirror/arcproxy/internal/core/constants"
)

const (
	DefaultPort = 7780
	DefaultHost = "0.0.0.0"

	DefaultFileWriteDelay = 150 * time.Millisecond
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			FetchPrefix:       "/fetch/",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      0, // streaming responses must not be write-timed out
			ShutdownTimeout:   10 * time.Second,
			TrustProxyHeaders: false,
			TrustedCIDRs:      []string{},
		},
		Engine: EngineConfig{
			CacheRoot:                "./cache",
			ChannelPoolCapacity:      256,
			LowSpeedFloorBytesPerSec: constants.DefaultLowSpeedFloorBytesPerSec,
			LowSpeedFloorDuration:    constants.DefaultLowSpeedFloorDuration,
		},
		Discovery: DiscoveryConfig{
			Type:            "static",
			RefreshInterval: constants.DefaultProviderRefreshInterval,
			Static: StaticDiscoveryConfig{
				Providers: []ProviderConfig{},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			FileOutput: true,
			LogDir:     "./logs",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Theme:      "default",
			PrettyLogs: true,
		},
	}
}

// Load loads configuration from file and environment variables, watching
// the file for changes and invoking onConfigChange (debounced) whenever
// it's rewritten.
func Load(onConfigChange func()) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("ARCPROXY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("ARCPROXY_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		} else if err := WriteDefaultConfig("./config.yaml"); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		} else if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading generated config file: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return
			}
			lastReload = now

			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}

	return cfg, nil
}

// WriteDefaultConfig marshals DefaultConfig to YAML and writes it to path
// if no file exists there yet, so a first run leaves behind an editable
// starting point instead of running entirely on in-memory defaults.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
