package stores

import (
	"blueprints-server/config"
	"blueprints-server/core"
	"blueprints-server/stores/filesystem"
	"blueprints-server/stores/memory"
	"blueprints-server/stores/postgres"
	"blueprints-server/stores/sqlite"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// GetStore opens the backend named by cfg.Type. Stores that hold
// connections or files also implement io.Closer.
func GetStore(ctx context.Context, cfg config.StorageConfig) (core.BlueprintStore, error) {
	var (
		store core.BlueprintStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store, err = filesystem.NewBlueprintStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewBlueprintStore(cfg.DataSourceName)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage type postgres requires POSTGRES_DSN")
		}
		store, err = postgres.NewBlueprintStore(ctx, cfg.PostgresDSN)
	case "memory", "":
		store = memory.NewBlueprintStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		logrus.WithFields(storageField).WithError(err).Error("Failed to open storage")
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
