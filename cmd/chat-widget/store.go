package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bharatgo/chat-widget/pkg/kv"
)

// openStore builds the session state store for the configured backend.
func openStore(cfg Config) (kv.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return kv.NewMemoryStore(), nil
	case "file":
		if cfg.StorePath == "" {
			return nil, errors.New("file store requires store_path")
		}
		return kv.NewFileStore(cfg.StorePath)
	case "sqlite":
		if cfg.StorePath == "" {
			return nil, errors.New("sqlite store requires store_path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
			return nil, errors.Wrap(err, "create state directory")
		}
		dsn, err := kv.SQLiteDSNForFile(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return kv.NewSQLiteStore(dsn)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("redis store requires redis_addr")
		}
		return kv.NewRedisStore(cfg.RedisAddr)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
