package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Push      PushConfig      `yaml:"push"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Calls     CallsConfig     `yaml:"calls"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     string        `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	SecretKey string `yaml:"secret_key"`
}

type PushConfig struct {
	Enabled    bool          `yaml:"enabled"`
	ServiceURL string        `yaml:"service_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

type WebSocketConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
	SendBufferSize int    `yaml:"send_buffer_size"`
}

type CallsConfig struct {
	MissedAfter   time.Duration `yaml:"missed_after"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// Origins splits the comma separated allow-list. "*" or an empty value allows all.
func (c WebSocketConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8001,
			BasePath:        "/api/realtime",
			Env:             "dev",
			LogLevel:        "debug",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     "*",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnectTimeout:  10 * time.Second,
		},
		Push: PushConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: "*",
			SendBufferSize: 256,
		},
		Calls: CallsConfig{
			MissedAfter:   60 * time.Second,
			SweepSchedule: "@every 30s",
		},
	}

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
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
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = origins
		cfg.WebSocket.AllowedOrigins = origins
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if pushURL := os.Getenv("PUSH_SERVICE_URL"); pushURL != "" {
		cfg.Push.ServiceURL = pushURL
	}
	if pushKey := os.Getenv("PUSH_API_KEY"); pushKey != "" {
		cfg.Push.APIKey = pushKey
	}
	if missedAfter := os.Getenv("CALL_MISSED_AFTER"); missedAfter != "" {
		if d, err := time.ParseDuration(missedAfter); err == nil {
			cfg.Calls.MissedAfter = d
		}
	}

	if cfg.Push.ServiceURL == "" {
		cfg.Push.Enabled = false
	}

	return cfg, nil
}
