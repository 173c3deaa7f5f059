package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/hostling/hostling/internal/backup"
	"github.com/hostling/hostling/internal/controller"
	"github.com/hostling/hostling/internal/logger"
	"github.com/hostling/hostling/internal/store/factory"
)

// Config is the top-level TOML structure (hostling.toml).
type Config struct {
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Store     factory.Config  `toml:"store" mapstructure:"store"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Lifecycle LifecycleConfig `toml:"lifecycle" mapstructure:"lifecycle"`
	Schedule  ScheduleConfig  `toml:"schedule" mapstructure:"schedule"`
	Backup    BackupConfig    `toml:"backup" mapstructure:"backup"`
	Sites     SitesConfig     `toml:"sites" mapstructure:"sites"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type MetricsConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

type HistoryConfig struct {
	ClickHouseAddr  string `toml:"clickhouse_addr" mapstructure:"clickhouse_addr"`
	ClickHouseTable string `toml:"clickhouse_table" mapstructure:"clickhouse_table"`
}

type LifecycleConfig struct {
	RestartCooldown    time.Duration `toml:"restart_cooldown" mapstructure:"restart_cooldown"`
	StopWait           time.Duration `toml:"stop_wait" mapstructure:"stop_wait"`
	MaxRestartAttempts int           `toml:"max_restart_attempts" mapstructure:"max_restart_attempts"`
	RestartBackoff     time.Duration `toml:"restart_backoff" mapstructure:"restart_backoff"`
	RestartBackoffCap  time.Duration `toml:"restart_backoff_cap" mapstructure:"restart_backoff_cap"`
	RevokeOrphans      bool          `toml:"revoke_orphans" mapstructure:"revoke_orphans"`
	HealthCommand      string        `toml:"health_command" mapstructure:"health_command"`
	ShutdownTimeout    time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type ScheduleConfig struct {
	HealthInterval         time.Duration `toml:"health_interval" mapstructure:"health_interval"`
	ReconcileInterval      time.Duration `toml:"reconcile_interval" mapstructure:"reconcile_interval"`
	SessionCleanupInterval time.Duration `toml:"session_cleanup_interval" mapstructure:"session_cleanup_interval"`
	BackupInterval         time.Duration `toml:"backup_interval" mapstructure:"backup_interval"`
}

type BackupConfig struct {
	Dir       string `toml:"dir" mapstructure:"dir"`
	Retention int    `toml:"retention" mapstructure:"retention"`
}

type SitesConfig struct {
	PublishDir string `toml:"publish_dir" mapstructure:"publish_dir"`
}

// Load reads a TOML config file and applies defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8211"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/api"
	}
	if c.Store.Type == "" {
		c.Store.Type = "sqlite"
	}
	if c.Store.Type == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "hostling.db"
	}
	if c.Lifecycle.RestartCooldown <= 0 {
		c.Lifecycle.RestartCooldown = controller.DefaultRestartCooldown
	}
	if c.Lifecycle.StopWait <= 0 {
		c.Lifecycle.StopWait = controller.DefaultStopWait
	}
	if c.Lifecycle.MaxRestartAttempts <= 0 {
		c.Lifecycle.MaxRestartAttempts = controller.DefaultMaxRestartAttempts
	}
	if c.Lifecycle.RestartBackoff <= 0 {
		c.Lifecycle.RestartBackoff = controller.DefaultRestartBackoff
	}
	if c.Lifecycle.RestartBackoffCap <= 0 {
		c.Lifecycle.RestartBackoffCap = controller.DefaultRestartBackoffCap
	}
	if c.Lifecycle.ShutdownTimeout <= 0 {
		c.Lifecycle.ShutdownTimeout = 30 * time.Second
	}
	if c.Schedule.HealthInterval <= 0 {
		c.Schedule.HealthInterval = 30 * time.Second
	}
	if c.Schedule.ReconcileInterval <= 0 {
		c.Schedule.ReconcileInterval = time.Minute
	}
	if c.Schedule.SessionCleanupInterval <= 0 {
		c.Schedule.SessionCleanupInterval = time.Hour
	}
	if c.Schedule.BackupInterval <= 0 {
		c.Schedule.BackupInterval = 24 * time.Hour
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "backups"
	}
	if c.Backup.Retention <= 0 {
		c.Backup.Retention = backup.DefaultRetention
	}
	if c.Sites.PublishDir == "" {
		c.Sites.PublishDir = "sites"
	}
}
