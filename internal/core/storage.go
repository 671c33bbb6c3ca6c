package core

import (
	"fmt"
	"os"
	"strings"

	"nestcore/internal/infra/persistence/memory"
	"nestcore/internal/infra/persistence/postgres"
	"nestcore/internal/infra/persistence/sqlite"
	"nestcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and configures the nest record store.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// StorageConfigFromEnv reads the storage environment variables.
//
//	NESTCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	NESTCORE_SQLITE_PATH: path to sqlite file (default ./nestcore.db)
//	NESTCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(strings.ToLower(strings.TrimSpace(os.Getenv("NESTCORE_STORAGE_DRIVER")))),
		SQLitePath:  os.Getenv("NESTCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("NESTCORE_POSTGRES_DSN"),
	}
}

// OpenPersistentStore selects a backend from cfg, defaulting to sqlite.
func OpenPersistentStore(cfg StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case "", StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
