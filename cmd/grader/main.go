// Command grader runs the submission grading service: the admission API,
// the bounded grading queue, the worker pool and the supervisory sweep.
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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dezolver/internal/common/cache"
	"dezolver/internal/common/db"
	"dezolver/internal/common/storage"
	"dezolver/internal/grading/controller"
	"dezolver/internal/grading/queue"
	"dezolver/internal/grading/repository"
	"dezolver/internal/grading/sandbox"
	"dezolver/internal/grading/service"
	"dezolver/pkg/utils/logger"
)

func main() {
	configPath := flag.String("config", "configs/grader.yaml", "path to config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, "grader exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	// Cache is required: rate limiting and status snapshots live there.
	redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisCache.Close()

	// MySQL is optional; without it the grader runs on in-memory stores,
	// which is enough for a single node and for local development.
	var (
		subs      repository.SubmissionRepository
		testcases repository.TestCaseStore
	)
	if cfg.MySQL.DSN != "" {
		database, err := db.NewMySQLWithConfig(&cfg.MySQL)
		if err != nil {
			return fmt.Errorf("connect mysql: %w", err)
		}
		defer database.Close()
		subs = repository.NewSubmissionRepository(database)
		testcases = repository.NewTestCaseStore(database)
	} else {
		logger.Warn(ctx, "mysql not configured, using in-memory stores")
		subs = repository.NewMemorySubmissionRepository()
		testcases = repository.NewMemoryTestCaseStore()
	}

	// Object storage is optional; without it sources are not archived.
	var archive *repository.SourceArchive
	if cfg.MinIO.Endpoint != "" {
		objectStore, err := storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("connect minio: %w", err)
		}
		archive = repository.NewSourceArchive(objectStore, cfg.MinIO.Bucket, "sources/")
	}

	sb, err := sandbox.NewCommandSandbox(cfg.Sandbox.WorkRoot, cfg.Sandbox.Languages)
	if err != nil {
		return fmt.Errorf("init sandbox: %w", err)
	}

	q := queue.New(cfg.Grading.QueueCapacity)
	hub := service.NewHub()
	statuses := repository.NewStatusRepository(redisCache, cfg.Grading.StatusTTL)
	limiter := service.NewRateLimiter(redisCache, cfg.RateLimit.Limit, cfg.RateLimit.Window)

	admission := service.NewAdmissionService(subs, testcases, q, limiter, statuses, archive, hub, cfg.Grading.MaxSourceBytes)

	pool := service.NewWorkerPool(service.WorkerPoolConfig{
		Workers:   cfg.Grading.Workers,
		LeaseTTL:  cfg.Grading.LeaseTTL,
		RunMargin: cfg.Grading.RunMargin,
	}, q, subs, testcases, sb, statuses, archive, hub)
	pool.Start(ctx)

	sweeper := service.NewSweeper(subs, statuses, hub, cfg.Grading.SweepInterval)
	go sweeper.Run(ctx)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		if err := redisCache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "queue_depth": q.Len()})
	})
	controller.NewSubmissionController(admission, hub).RegisterRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(context.Background(), "http shutdown failed", zap.Error(err))
	}

	// Stop accepting work, then let in-flight grading finish.
	q.Close()
	pool.Wait()
	logger.Info(context.Background(), "grader stopped")
	return nil
}
