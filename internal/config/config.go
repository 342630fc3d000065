package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Services ServicesConfig `yaml:"services"`
	Presence PresenceConfig `yaml:"presence"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	ServiceURL string `yaml:"service_url"`
	SecretKey  string `yaml:"secret_key"`
}

type ServicesConfig struct {
	WorkspaceServiceURL string `yaml:"workspace_service_url"`
}

// PresenceConfig carries the tunables of the presence core.
type PresenceConfig struct {
	IdleTimeout           time.Duration `yaml:"idle_timeout"`
	SweepInterval         time.Duration `yaml:"sweep_interval"`
	MaxConnectionsPerUser int           `yaml:"max_connections_per_user"`
	ReconnectGrace        time.Duration `yaml:"reconnect_grace"`
}

// Load reads the yaml file at path if it exists, then applies environment
// variable overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            "8002",
			BasePath:        "/api/presence",
			Env:             "dev",
			LogLevel:        "debug",
			ShutdownTimeout: 10 * time.Second,
		},
		Presence: PresenceConfig{
			IdleTimeout:           5 * time.Minute,
			SweepInterval:         30 * time.Second,
			MaxConnectionsPerUser: 5,
			ReconnectGrace:        5 * time.Second,
		},
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if wsURL := os.Getenv("WORKSPACE_SERVICE_URL"); wsURL != "" {
		cfg.Services.WorkspaceServiceURL = wsURL
	}

	if v := os.Getenv("PRESENCE_IDLE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Presence.IdleTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("PRESENCE_SWEEP_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Presence.SweepInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("PRESENCE_MAX_CONNECTIONS_PER_USER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Presence.MaxConnectionsPerUser = n
		}
	}
	if v := os.Getenv("PRESENCE_RECONNECT_GRACE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Presence.ReconnectGrace = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg, nil
}
