package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codearena/judge-core/internal/config"
	"github.com/codearena/judge-core/internal/database"
	"github.com/codearena/judge-core/internal/models"
	"github.com/codearena/judge-core/internal/observability"
	"github.com/codearena/judge-core/internal/repository"
	"github.com/codearena/judge-core/internal/runtime"
	"github.com/codearena/judge-core/internal/service"
	"github.com/codearena/judge-core/internal/worker"
	"github.com/codearena/judge-core/pkg/sandbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Problem{}, &models.TestCase{},
		&models.Submission{}, &models.TestResult{},
		&models.Contest{}, &models.ContestProblem{}, &models.ContestResult{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	executor, err := buildExecutor(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build executor: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	registry := runtime.NewRegistry()

	problemRepo := repository.NewProblemRepository(db)
	contestRepo := repository.NewContestRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	contestResultRepo := repository.NewContestResultRepository(db)
	locker := repository.NewRedisLocker(redisClient, logger)

	gradingService := service.NewGradingService(executor, registry, service.GradingConfig{
		SubmissionBudget: cfg.SubmissionBudget,
	}, logger)
	contestService := service.NewContestService(contestResultRepo, contestRepo, problemRepo, locker, logger)

	publisher := worker.NewStatusPublisher(natsConn, cfg.EventSubjectBase, logger)
	judgeWorker := worker.New(redisClient, worker.Config{
		QueueName:   cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
	}, gradingService, contestService, problemRepo, contestRepo, submissionRepo, publisher, validate, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		judgeWorker.Start(workerCtx)
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", observability.MetricsHandler())

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorker, &wg)
}

func buildExecutor(cfg config.Config, logger zerolog.Logger) (sandbox.Executor, error) {
	if cfg.ExecutorBackend == "docker" {
		return sandbox.NewDockerExecutor(sandbox.DockerConfig{
			Host:          cfg.DockerHost,
			WorkspaceRoot: cfg.WorkspaceRoot,
			Logger:        logger,
		})
	}

	return sandbox.NewProcessExecutor(sandbox.ProcessConfig{
		WorkspaceRoot: cfg.WorkspaceRoot,
		Logger:        logger,
	}), nil
}

func waitForShutdown(app *fiber.App, stopWorker context.CancelFunc, wg *sync.WaitGroup) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	stopWorker()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("judge daemon stopped")
}
