package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the file-backed CLI configuration. Every field can be
// overridden by a CHAT_WIDGET_* environment variable, which wins over the
// file value.
type Config struct {
	// APIURL is the answering service endpoint questions are POSTed to.
	APIURL string `yaml:"api_url"`
	// ProfileURL, when set, enables fresh contact-detail fetches for
	// authenticated vendors.
	ProfileURL string `yaml:"profile_url"`
	// StoreBackend selects where session state lives: memory, file,
	// sqlite, or redis.
	StoreBackend string `yaml:"store_backend"`
	// StorePath is the directory (file backend) or database file (sqlite
	// backend).
	StorePath string `yaml:"store_path"`
	// RedisAddr is the redis host:port for the redis backend.
	RedisAddr string `yaml:"redis_addr"`
	// ListenAddr is the serve command's HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`
}

func defaultConfig() Config {
	return Config{
		StoreBackend: "file",
		StorePath:    defaultStatePath(),
		ListenAddr:   ":8080",
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".chat-widget"
	}
	return filepath.Join(dir, "chat-widget")
}

// loadConfig reads the YAML file at path (missing file is fine, defaults
// apply) and layers environment overrides on top.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
			// fall through to defaults
		default:
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	overrideFromEnv(&cfg.APIURL, "CHAT_WIDGET_API_URL")
	overrideFromEnv(&cfg.ProfileURL, "CHAT_WIDGET_PROFILE_URL")
	overrideFromEnv(&cfg.StoreBackend, "CHAT_WIDGET_STORE_BACKEND")
	overrideFromEnv(&cfg.StorePath, "CHAT_WIDGET_STORE_PATH")
	overrideFromEnv(&cfg.RedisAddr, "CHAT_WIDGET_REDIS_ADDR")
	overrideFromEnv(&cfg.ListenAddr, "CHAT_WIDGET_LISTEN_ADDR")

	return cfg, nil
}

func overrideFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
