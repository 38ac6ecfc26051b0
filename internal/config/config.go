package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Render RenderConfig
	Engine EngineConfig
	Redis  RedisConfig
}

type ServerConfig struct {
	Port string
	// PublicURL is the base used to build result locators.
	PublicURL string
	LogDir    string
	LogLevel  string
}

type RenderConfig struct {
	// Dir is where output files are written and served from.
	Dir string
	// Retention is how long terminal jobs and their files are kept.
	// Zero keeps them forever.
	Retention time.Duration
	// Timeout bounds a single render. Zero disables the watchdog.
	Timeout time.Duration
	// RatePerHour limits job creation per client IP. Zero disables.
	RatePerHour int
}

type EngineConfig struct {
	// ServeURL points at a pre-built composition bundle. When empty,
	// BundleEntry is built at startup.
	ServeURL    string
	BundleEntry string
	BundleOut   string
	Binary      string
}

type RedisConfig struct {
	// Addr enables the shared rate limiter counter. Empty falls back to
	// in-process limiting.
	Addr     string
	Password string
	DB       int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	viper.SetDefault("server.port", "3001")
	viper.SetDefault("server.public_url", "http://localhost:3001")
	viper.SetDefault("server.log_dir", "./logs")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("render.dir", "./renders")
	viper.SetDefault("render.retention", "24h")
	viper.SetDefault("render.timeout", "0")
	viper.SetDefault("render.rate_per_hour", 60)
	viper.SetDefault("engine.serve_url", "")
	viper.SetDefault("engine.bundle_entry", "../remotion-compositions/src/index.ts")
	viper.SetDefault("engine.bundle_out", "./bundle")
	viper.SetDefault("engine.binary", "npx")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			PublicURL: viper.GetString("server.public_url"),
			LogDir:    viper.GetString("server.log_dir"),
			LogLevel:  viper.GetString("server.log_level"),
		},
		Render: RenderConfig{
			Dir:         viper.GetString("render.dir"),
			Retention:   viper.GetDuration("render.retention"),
			Timeout:     viper.GetDuration("render.timeout"),
			RatePerHour: viper.GetInt("render.rate_per_hour"),
		},
		Engine: EngineConfig{
			ServeURL:    viper.GetString("engine.serve_url"),
			BundleEntry: viper.GetString("engine.bundle_entry"),
			BundleOut:   viper.GetString("engine.bundle_out"),
			Binary:      viper.GetString("engine.binary"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	return cfg, nil
}
