package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		APIKeys         []string `yaml:"api_keys"`
		RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
		RateLimitBurst  int      `yaml:"rate_limit_burst"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		Timezone           string `yaml:"timezone"`
		ClockSkewSeconds   int    `yaml:"clock_skew_seconds"`
		MinDurationMinutes int    `yaml:"min_duration_minutes"`
		GridMinutes        int    `yaml:"grid_minutes"`
	} `yaml:"booking"`

	Access struct {
		PrivilegedUserType int    `yaml:"privileged_user_type"`
		RestrictedRoomType string `yaml:"restricted_room_type"`
		GroupCapacity      int    `yaml:"group_capacity"`
	} `yaml:"access"`

	Rooms struct {
		SeedPath             string `yaml:"seed_path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"rooms"`
}

// BackupConfig controls scheduled database snapshots.
type BackupConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a standard five-field cron expression.
	Schedule      string `yaml:"schedule"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/roombooking.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if _, err = cfg.Location(); err != nil {
		return nil, fmt.Errorf("booking.timezone: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves booking.timezone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Booking.Timezone)
}

func (c *Config) ClockSkew() time.Duration {
	if c.Booking.ClockSkewSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Booking.ClockSkewSeconds) * time.Second
}

func (c *Config) MinDuration() time.Duration {
	if c.Booking.MinDurationMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.MinDurationMinutes) * time.Minute
}

func (c *Config) Grid() time.Duration {
	if c.Booking.GridMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Booking.GridMinutes) * time.Minute
}

func (c *Config) PrivilegedUserType() int {
	if c.Access.PrivilegedUserType <= 0 {
		return 4
	}
	return c.Access.PrivilegedUserType
}

func (c *Config) RestrictedRoomType() string {
	if c.Access.RestrictedRoomType == "" {
		return "KOL"
	}
	return c.Access.RestrictedRoomType
}

func (c *Config) GroupCapacity() int {
	if c.Access.GroupCapacity <= 0 {
		return 5
	}
	return c.Access.GroupCapacity
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) RoomsWatchInterval() time.Duration {
	if c.Rooms.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Rooms.WatchIntervalSeconds) * time.Second
}
