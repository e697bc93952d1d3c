package main

import (
	"context"
	"flag"

	"github.com/oncotrack-ai/platform/pkg/common/config"
	"github.com/oncotrack-ai/platform/pkg/common/database"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/registry"
)

func main() {
	projects := flag.Int("projects", 0, "number of projects to seed")
	subjects := flag.Int("subjects", 0, "subjects per project")
	lesions := flag.Int("lesions", 0, "lesions per subject")
	measurements := flag.Int("measurements", 0, "measurements per lesion")
	clear := flag.Bool("clear", false, "delete all existing projects first")
	profilePath := flag.String("profile", "", "path to a YAML seed profile")
	flag.Parse()

	logger.Init()
	cfg := config.Load()

	profile, err := registry.LoadSeedProfile(*profilePath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load seed profile")
	}
	if *projects > 0 {
		profile.Projects = *projects
	}
	if *subjects > 0 {
		profile.SubjectsPerProject = *subjects
	}
	if *lesions > 0 {
		profile.LesionsPerSubject = *lesions
	}
	if *measurements > 0 {
		profile.MeasurementsPerLesion = *measurements
	}

	db, err := database.NewPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	repo := registry.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate registry tables")
	}

	if err := repo.Seed(context.Background(), profile, *clear); err != nil {
		logger.Log.WithError(err).Fatal("seeding failed")
	}

	logger.Log.WithFields(map[string]interface{}{
		"projects":     profile.Projects,
		"subjects":     profile.SubjectsPerProject,
		"lesions":      profile.LesionsPerSubject,
		"measurements": profile.MeasurementsPerLesion,
	}).Info("Seed complete")
}
