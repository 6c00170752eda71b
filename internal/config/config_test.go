package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tdewolff/test"
)

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "IMAGE_FETCH_TIMEOUT", "IMAGE_LOAD_CONCURRENCY", "ALLOWED_ORIGINS", "MAX_IMAGE_PIXELS", "ALLOW_PRIVATE_IMAGE_HOSTS"} {
		unsetenv(t, key)
	}
	cfg, err := Load()
	test.Error(t, err)
	test.T(t, cfg.Port, 8080)
	test.T(t, cfg.ImageFetchTimeout, 15*time.Second)
	test.T(t, cfg.ImageLoadConcurrency, 4)
	test.T(t, cfg.MaxImagePixels, 40000000)
	test.T(t, cfg.AllowPrivateImageHosts, false)
	test.T(t, cfg.Origins(), []string{"http://localhost:5173", "http://localhost:3000"})
	test.T(t, cfg.SlogLevel(), slog.LevelInfo)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("IMAGE_FETCH_TIMEOUT", "2s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOW_PRIVATE_IMAGE_HOSTS", "true")
	cfg, err := Load()
	test.Error(t, err)
	test.T(t, cfg.Port, 9090)
	test.T(t, cfg.ImageFetchTimeout, 2*time.Second)
	test.T(t, cfg.Origins(), []string{"https://a.example", "https://b.example"})
	test.T(t, cfg.SlogLevel(), slog.LevelDebug)
	test.T(t, cfg.AllowPrivateImageHosts, true)

	cfg.LogLevel = "loud"
	test.T(t, cfg.SlogLevel(), slog.LevelInfo)
}
