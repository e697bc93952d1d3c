package main

import (
	"github.com/oncotrack-ai/platform/pkg/common/config"
	"github.com/oncotrack-ai/platform/pkg/common/database"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/registry"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.NewPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	repo := registry.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate registry tables")
	}

	logger.Log.Info("Registry tables migrated")
}
