package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"cogstate-service/internal/analytics"
)

// Config is the top-level configuration structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	QueueSize    int           `mapstructure:"queue_size"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
	RecentLimit int64         `mapstructure:"recent_limit"`
}

// EngineConfig holds the tunable windows of the per-session engine.
type EngineConfig struct {
	Window            time.Duration `mapstructure:"window"`
	YawnWindow        time.Duration `mapstructure:"yawn_window"`
	AttentionCapacity int           `mapstructure:"attention_capacity"`
}

func (e EngineConfig) Analytics() analytics.EngineConfig {
	return analytics.EngineConfig{
		Window:            e.Window,
		YawnWindow:        e.YawnWindow,
		AttentionCapacity: e.AttentionCapacity,
	}
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 30*time.Second)
	v.SetDefault("server.queue_size", 10000)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", time.Hour)
	v.SetDefault("redis.recent_limit", 1000)

	def := analytics.DefaultEngineConfig()
	v.SetDefault("engine.window", def.Window)
	v.SetDefault("engine.yawn_window", def.YawnWindow)
	v.SetDefault("engine.attention_capacity", def.AttentionCapacity)

	v.SetDefault("session.idle_timeout", 10*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true)
}

// Manager loads configuration and keeps it current when the file changes.
type Manager struct {
	v   *viper.Viper
	mu  sync.RWMutex
	cfg Config
}

// Load reads config.yaml from dir if present, then applies COGSTATE_*
// environment overrides on top of the defaults.
func Load(dir string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COGSTATE") // e.g., COGSTATE_REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine; defaults and env vars are used.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	m := &Manager{v: v}
	if err := v.Unmarshal(&m.cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return m, nil
}

func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Watch reloads the configuration whenever the config file changes and hands
// the new value to onChange.
func (m *Manager) Watch(log *zap.Logger, onChange func(Config)) {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		var next Config
		if err := m.v.Unmarshal(&next); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		m.mu.Lock()
		m.cfg = next
		m.mu.Unlock()
		if onChange != nil {
			onChange(next)
		}
	})
	m.v.WatchConfig()
}
