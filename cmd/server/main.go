package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"warranty-sync-service/internal/api"
	"warranty-sync-service/internal/config"
	"warranty-sync-service/internal/extract"
	"warranty-sync-service/internal/logger"
	"warranty-sync-service/internal/scclient"
	"warranty-sync-service/internal/store"
	"warranty-sync-service/internal/sync"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting warranty sync service",
		zap.String("template_id", cfg.SafetyCulture.TemplateID))

	st, err := newStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to init state store", zap.Error(err))
	}
	defer st.Close()

	client, err := scclient.NewClient(cfg.SafetyCulture, cfg.Sync.PageSize, log)
	if err != nil {
		log.Fatal("Failed to init audit client", zap.Error(err))
	}

	extractor := extract.NewExtractor(cfg.Sync)
	manager := sync.NewManager(client, extractor, st, log)

	scheduler := sync.NewScheduler(cfg.Scheduler, cfg.SafetyCulture.TemplateID, manager, log)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(manager, st, cfg, log)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}

func newStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StateStorage.Type {
	case "mysql":
		return store.NewMySQLStore(cfg.StateStorage, log)
	case "sqlite":
		return store.NewSQLiteStore(cfg.StateStorage)
	default:
		return nil, fmt.Errorf("unsupported state storage type %q", cfg.StateStorage.Type)
	}
}
