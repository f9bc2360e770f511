package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/medplan/internal/config"
	"github.com/example/medplan/internal/database"
	"github.com/example/medplan/internal/importer"
	"github.com/example/medplan/internal/revision"
	"github.com/example/medplan/internal/scheduler"
	"github.com/example/medplan/internal/server"
)

func main() {
	importPath := flag.String("import", "", "import a study plan (.xlsx or .csv) and exit")
	importUser := flag.Int64("import-user", 0, "user id owning the imported topics")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.DBType, cfg.DSN())
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	topicRepo := database.NewTopicRepository(db)
	revisionRepo := database.NewRevisionRepository(db)
	svc := revision.NewService(revisionRepo, topicRepo, logger)

	if *importPath != "" {
		runImport(topicRepo, *importPath, *importUser, logger)
		return
	}

	sched := scheduler.New(svc, scheduler.LogNotifier{Log: logger}, cfg.SummaryHour, logger)
	sched.Start()
	defer sched.Stop()

	srv := server.New(svc, logger)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := srv.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", zap.String("signal", sig.String()))

	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func runImport(topics *database.TopicRepository, path string, userID int64, logger *zap.Logger) {
	if userID <= 0 {
		logger.Fatal("-import requires -import-user")
	}
	result, err := importer.ImportPlan(context.Background(), topics, importer.DefaultConfig(path, userID))
	if err != nil {
		logger.Fatal("import study plan", zap.Error(err))
	}
	logger.Info("study plan imported",
		zap.Int("processed", result.TotalProcessed),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))
	for _, e := range result.Errors {
		logger.Warn("import row failed", zap.String("detail", e))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
