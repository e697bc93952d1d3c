package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/oncotrack-ai/platform/pkg/analytics"
	"github.com/oncotrack-ai/platform/pkg/common/config"
	"github.com/oncotrack-ai/platform/pkg/common/database"
	"github.com/oncotrack-ai/platform/pkg/common/kafka"
	"github.com/oncotrack-ai/platform/pkg/common/logger"
	"github.com/oncotrack-ai/platform/pkg/common/middleware"
	"github.com/oncotrack-ai/platform/pkg/observability/metrics"
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

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(cfg)
		defer producer.Close()
	}

	redisClient := database.NewRedis(cfg)
	defer database.CloseRedis(redisClient)

	engine := analytics.NewEngine(repo)
	analyticsService := analytics.NewService(engine, redisClient, cfg.RollupCacheTTL)
	analyticsHandler := analytics.NewHandler(analyticsService)

	registryService := registry.NewService(repo, producer, analyticsService)
	registryHandler := registry.NewHandler(registryService)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.MaxBody(cfg.MaxRequestBody))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	registryHandler.Register(api)
	analyticsHandler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Registry service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start registry service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down registry service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Registry service forced to shutdown")
	}
	logger.Log.Info("Registry service stopped")
}
