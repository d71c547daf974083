package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"edopro-pics/internal/catalog"
	"edopro-pics/internal/config"
	"edopro-pics/internal/downloader"
	apphttp "edopro-pics/internal/http"
	"edopro-pics/internal/report"
	"edopro-pics/internal/repository/sqlite"
	"edopro-pics/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	runRepo := sqlite.NewRunRepository(db)
	settingRepo := sqlite.NewSettingRepository(db)

	if err := runRepo.Init(ctx); err != nil {
		logger.Fatalf("init run repository: %v", err)
	}
	if err := settingRepo.Init(ctx); err != nil {
		logger.Fatalf("init setting repository: %v", err)
	}

	runService := service.NewRunService(runRepo, settingRepo)

	catalogClient := catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.UserAgent, 60*time.Second)
	reportWriter := report.NewWriter(cfg.Reports.Dir)

	manager := downloader.NewManager(downloader.Config{
		Catalog:   catalogClient,
		Reports:   reportWriter,
		Runs:      runService,
		UserAgent: cfg.Catalog.UserAgent,
		Logger:    logger,
	})

	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("start manager: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(manager, runService)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	manager.Shutdown()

	logger.Info("bye")
}
