package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/enrondata/maildir-etl/internal/adapters/store"
	"github.com/enrondata/maildir-etl/internal/config"
	"github.com/enrondata/maildir-etl/internal/core"
	"go.uber.org/zap"
)

// StoreFactory creates dataset stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDatasetStore creates a dataset store based on the configuration
func (f *StoreFactory) CreateDatasetStore() (core.DatasetStore, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryStore(f.logger), nil
	case "sqlite":
		sqlitePath := storeCfg.SQLitePath
		if sqlitePath == "" {
			sqlitePath = filepath.Join(f.cfg.GetString("output.dir"), "maildir.db")
		}
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		return store.NewMySQLStore(storeCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}
