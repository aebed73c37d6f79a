package commands

import (
	"os"
	"path/filepath"

	"github.com/teranos/yanantin/am"
	"github.com/teranos/yanantin/apacheta"
	"github.com/teranos/yanantin/apacheta/client"
	"github.com/teranos/yanantin/apacheta/docstore"
	"github.com/teranos/yanantin/apacheta/memory"
	"github.com/teranos/yanantin/apacheta/sqlstore"
	"github.com/teranos/yanantin/errors"
	"github.com/teranos/yanantin/logger"
)

// closer releases a store; the memory backend has nothing to release.
type closer func() error

func nopCloser() error { return nil }

// loadConfig loads and validates am.toml.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// openStore opens the backend named by store.backend.
func openStore(cfg *am.Config) (apacheta.TensorStore, closer, error) {
	opts := []apacheta.Option{apacheta.WithCaller(cfg.Store.Caller)}
	log := logger.Logger

	switch cfg.Store.Backend {
	case am.BackendMemory:
		return memory.New(log, opts...), nopCloser, nil
	case am.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), am.DefaultDirPermissions); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create directory for %s", cfg.Store.Path)
		}
		s, err := sqlstore.Open(cfg.Store.Path, log, opts...)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to open sqlite store at %s", cfg.Store.Path)
		}
		return s, s.Close, nil
	case am.BackendBadger:
		s, err := docstore.Open(docstore.Options{Dir: cfg.Store.Path}, log, opts...)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to open badger store at %s", cfg.Store.Path)
		}
		return s, s.Close, nil
	case am.BackendRemote:
		c, err := client.New(client.Options{
			BaseURL: cfg.Store.GatewayURL,
			APIKey:  cfg.Store.APIKey,
			Timeout: cfg.StoreTimeout(),
		}, log)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to connect to %s", cfg.Store.GatewayURL)
		}
		return c, c.Close, nil
	}
	return nil, nil, errors.Newf("unsupported store backend %q", cfg.Store.Backend)
}

// withStore loads config, opens the store and runs fn, closing the store
// afterwards.
func withStore(fn func(cfg *am.Config, store apacheta.TensorStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warnw("failed to close store", logger.FieldError, err)
		}
	}()
	return fn(cfg, store)
}
