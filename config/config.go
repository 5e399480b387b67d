// Package config 基于 viper 的配置加载：YAML 文件 + HANGOUT_ 环境变量覆盖 + 默认值
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	StaticDir      string   `mapstructure:"static_dir"`      // 为空则不挂载静态资源
	AllowedOrigins []string `mapstructure:"allowed_origins"` // 含 "*" 时放行所有来源
}

// WebSocketConfig 连接参数
type WebSocketConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

// RoomsConfig 房间数据与几何参数
type RoomsConfig struct {
	SavedFile         string `mapstructure:"saved_file"`
	DefaultFile       string `mapstructure:"default_file"`
	CatalogFile       string `mapstructure:"catalog_file"`
	Width             int    `mapstructure:"width"`
	Height            int    `mapstructure:"height"`
	GridDivision      int    `mapstructure:"grid_division"`
	SpawnAttempts     int    `mapstructure:"spawn_attempts"`
	TrustClientOrigin bool   `mapstructure:"trust_client_origin"`
}

// PersistenceConfig 写回节拍
type PersistenceConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggingConfig 日志
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
	File       string `mapstructure:"file"`   // 为空则输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Config 顶层配置
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	WebSocket   WebSocketConfig   `mapstructure:"websocket"`
	Rooms       RoomsConfig       `mapstructure:"rooms"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Validate 收集所有不合法项，一次性返回
func (c Config) Validate() error {
	var errs []string
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if c.WebSocket.ReadLimit <= 0 {
		errs = append(errs, fmt.Sprintf("websocket.read_limit must be > 0, got %d", c.WebSocket.ReadLimit))
	}
	if c.WebSocket.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be positive")
	}
	if c.WebSocket.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		errs = append(errs, "websocket.ping_interval must be positive and shorter than websocket.pong_wait")
	}
	if c.WebSocket.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", c.WebSocket.SendBuffer))
	}
	if c.Rooms.DefaultFile == "" && c.Rooms.SavedFile == "" {
		errs = append(errs, "rooms.saved_file or rooms.default_file must be set")
	}
	if c.Rooms.CatalogFile == "" {
		errs = append(errs, "rooms.catalog_file must not be empty")
	}
	if c.Rooms.Width < 1 || c.Rooms.Height < 1 {
		errs = append(errs, fmt.Sprintf("rooms.width and rooms.height must be >= 1, got %dx%d", c.Rooms.Width, c.Rooms.Height))
	}
	if c.Rooms.GridDivision < 1 {
		errs = append(errs, fmt.Sprintf("rooms.grid_division must be >= 1, got %d", c.Rooms.GridDivision))
	}
	if c.Rooms.SpawnAttempts < 1 {
		errs = append(errs, fmt.Sprintf("rooms.spawn_attempts must be >= 1, got %d", c.Rooms.SpawnAttempts))
	}
	if c.Persistence.FlushInterval <= 0 {
		errs = append(errs, "persistence.flush_interval must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load 读取配置文件（path 为空时只用默认值与环境变量），应用覆盖并校验
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HANGOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper 从已配置好的 viper 实例构建配置
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("websocket.read_limit", 1<<20)
	v.SetDefault("websocket.write_wait", "5s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_interval", "50s")
	v.SetDefault("websocket.send_buffer", 64)

	v.SetDefault("rooms.saved_file", "rooms.json")
	v.SetDefault("rooms.default_file", "data/default.json")
	v.SetDefault("rooms.catalog_file", "data/catalog.yaml")
	v.SetDefault("rooms.width", 7)
	v.SetDefault("rooms.height", 7)
	v.SetDefault("rooms.grid_division", 2)
	v.SetDefault("rooms.spawn_attempts", 100)
	v.SetDefault("rooms.trust_client_origin", true)

	v.SetDefault("persistence.flush_interval", "500ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)
}
