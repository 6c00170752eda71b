package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	APIKeyHash     string `envconfig:"API_KEY_HASH"`
	AssetDir       string `envconfig:"ASSET_DIR" default:"./data/assets"`
	FontDir        string `envconfig:"FONT_DIR"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	MaxImageBytes        int64         `envconfig:"MAX_IMAGE_BYTES" default:"26214400"`
	MaxImagePixels       int           `envconfig:"MAX_IMAGE_PIXELS" default:"40000000"`
	ImageFetchTimeout    time.Duration `envconfig:"IMAGE_FETCH_TIMEOUT" default:"15s"`
	ImageLoadConcurrency int           `envconfig:"IMAGE_LOAD_CONCURRENCY" default:"4"`
	// Lets remote image sources point at loopback and private networks.
	AllowPrivateImageHosts bool `envconfig:"ALLOW_PRIVATE_IMAGE_HOSTS" default:"false"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into a list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
