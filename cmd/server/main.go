package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/photomap-backend-go/internal/api"
	"github.com/jengzang/photomap-backend-go/internal/config"
	"github.com/jengzang/photomap-backend-go/internal/database"
	"github.com/jengzang/photomap-backend-go/internal/logger"
	"github.com/jengzang/photomap-backend-go/internal/pipeline"
	"github.com/jengzang/photomap-backend-go/internal/repository"
	"github.com/jengzang/photomap-backend-go/internal/service"
	"github.com/jengzang/photomap-backend-go/internal/textproc"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Named("Server")

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	defaults, err := config.LoadRunConfig(cfg.RunConfigPath)
	if err != nil {
		log.Fatalf("Failed to load run config: %v", err)
	}

	stopwords, err := textproc.LoadStopwords(cfg.StopwordFile)
	if err != nil {
		log.Fatalf("Failed to load stopwords: %v", err)
	}

	p, err := pipeline.New(pipeline.Options{
		MapPath:        cfg.MapPath,
		ChartDir:       cfg.ChartDir,
		ChartURLPrefix: "/charts/",
		Stopwords:      stopwords,
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	runs := service.NewRunService(repository.NewRunRepository(database.GetDB()), p, cfg.DataPath, service.CSVLoader)
	runs.RecoverInterrupted()

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           api.SetupRouter(cfg, runs, defaults),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server starting on %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Infof("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server stopped: %v", err)
	}
}
