package config

import "time"

// Config holds all configuration for the proxy.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
}

// ServerConfig holds the front-end HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	FetchPrefix     string        `yaml:"fetch_prefix"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TrustProxyHeaders enables X-Forwarded-For/X-Real-IP lookups for
	// client-IP attribution in logs, but only from callers in TrustedCIDRs.
	TrustProxyHeaders bool     `yaml:"trust_proxy_headers"`
	TrustedCIDRs      []string `yaml:"trusted_cidrs"`
}

// EngineConfig holds the job-execution engine's tunables.
type EngineConfig struct {
	CacheRoot                string        `yaml:"cache_root"`
	ChannelPoolCapacity      int           `yaml:"channel_pool_capacity"`
	LowSpeedFloorBytesPerSec int64         `yaml:"low_speed_floor_bytes_per_sec"`
	LowSpeedFloorDuration    time.Duration `yaml:"low_speed_floor_duration"`
}

// DiscoveryConfig holds provider-discovery configuration.
type DiscoveryConfig struct {
	Type            string                `yaml:"type"` // Only "static" is implemented
	Static          StaticDiscoveryConfig `yaml:"static"`
	RefreshInterval time.Duration         `yaml:"refresh_interval"`
}

// StaticDiscoveryConfig holds the statically configured provider list.
type StaticDiscoveryConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures one upstream mirror, including its
// pre-computed latency score (the durations the discovery collaborator
// would otherwise probe for; domain.NewScore keeps them as integer
// nanoseconds for ranking).
type ProviderConfig struct {
	Name           string        `yaml:"name"`
	BaseURI        string        `yaml:"base_uri"`
	Country        string        `yaml:"country"`
	NameLookupTime time.Duration `yaml:"name_lookup_time"`
	ConnectTime    time.Duration `yaml:"connect_time"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FileOutput bool   `yaml:"file_output"`
	LogDir     string `yaml:"log_dir"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Theme      string `yaml:"theme"`
	PrettyLogs bool   `yaml:"pretty_logs"`
}
