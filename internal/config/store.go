package config

import (
	"fmt"
	"log/slog"

	"github.com/roach88/rangeplan/internal/kv"
	"github.com/roach88/rangeplan/internal/kv/badgerkv"
	"github.com/roach88/rangeplan/internal/kv/boltkv"
	"github.com/roach88/rangeplan/internal/kv/sqlitekv"
)

// OpenStore opens the configured backend. For badger, an empty path opens
// an in-memory store.
func (c *Config) OpenStore(logger *slog.Logger) (kv.Store, error) {
	path := c.Store.Path
	var (
		s   kv.Store
		err error
	)
	switch c.Store.Backend {
	case BackendSQLite:
		s, err = openSQLite(path)
	case BackendBolt:
		s, err = openBolt(path)
	case BackendBadger:
		s, err = openBadger(path, logger)
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", c.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.Store.Backend, err)
	}
	return s, nil
}

func openSQLite(path string) (kv.Store, error) {
	s, err := sqlitekv.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openBolt(path string) (kv.Store, error) {
	s, err := boltkv.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openBadger(path string, logger *slog.Logger) (kv.Store, error) {
	s, err := badgerkv.Open(badgerkv.Config{
		Dir:      path,
		InMemory: path == "",
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
