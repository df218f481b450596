package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workflow-engine/internal/api/http"
	"github.com/spec-kit/workflow-engine/internal/api/http/handlers"
	"github.com/spec-kit/workflow-engine/internal/auth"
	"github.com/spec-kit/workflow-engine/internal/config"
	"github.com/spec-kit/workflow-engine/internal/engine"
	"github.com/spec-kit/workflow-engine/internal/events"
	"github.com/spec-kit/workflow-engine/internal/notification"
	"github.com/spec-kit/workflow-engine/internal/observability"
	"github.com/spec-kit/workflow-engine/internal/persistence"
	"github.com/spec-kit/workflow-engine/internal/repository"
	"github.com/spec-kit/workflow-engine/internal/service"
	"github.com/spec-kit/workflow-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var locks engine.LockManager = engine.NewMemoryLockManager()
	if redis.Enabled() {
		locks = engine.NewRedisLockManager(redis.Client, "", logger)
	}

	pool := pg.PoolHandle()
	workflowRepo := repository.NewWorkflowRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	if cfg.AMQP.Enabled {
		amqpDispatcher, err := events.NewAMQPDispatcher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Error("amqp unavailable, falling back to in-memory events", zap.Error(err))
		} else {
			dispatcher = amqpDispatcher
		}
	}

	definitionService := service.NewDefinitionService(service.DefinitionDependencies{
		Repo:       workflowRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err := definitionService.Load(ctx); err != nil {
		logger.Fatal("failed to load workflow definitions", zap.Error(err))
	}

	historyService := service.NewHistoryService(historyRepo, logger, metrics, cfg.Engine.HistoryWriteRetries)
	assignmentService := service.NewAssignmentService(agentRepo)

	notifier := notification.NewService(cfg.Notification, logger)
	webhooks := notification.NewHTTPWebhookClient(logger)
	scripts := engine.NewScriptRunner()
	eventLog := observability.NewEventLog(logger)

	pipeline := engine.NewPipeline(engine.PipelineDependencies{
		Tickets:  ticketRepo,
		Notifier: notifier,
		Webhooks: webhooks,
		Scripts:  scripts,
		Assigner: assignmentService,
		Events:   eventLog,
		Logger:   logger,
	}, engine.PipelineConfig{
		WebhookTimeout: cfg.Engine.WebhookTimeout(),
		ScriptTimeout:  cfg.Engine.ScriptTimeout(),
		NotifyTimeout:  cfg.Engine.NotifyTimeout(),
	})

	executor := engine.NewExecutor(engine.ExecutorDependencies{
		Definitions: definitionService,
		Tickets:     ticketRepo,
		Directory:   agentRepo,
		Evaluator:   engine.NewEvaluator(scripts, cfg.Engine.ScriptTimeout()),
		Pipeline:    pipeline,
		History:     historyService,
		Locks:       locks,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	}, engine.ExecutorConfig{
		LockTTL:  cfg.Engine.LockTTL(),
		LockWait: cfg.Engine.LockWait(),
	})

	if cfg.Engine.AutomaticEnabled {
		automaticWorker := worker.NewAutomaticWorker(
			definitionService,
			ticketRepo,
			executor,
			cfg.Engine.AutomaticInterval(),
			cfg.Engine.AutomaticBatchSize,
			logger,
		)
		go automaticWorker.Run(ctx)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 0)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, definitionService)
	definitionsHandler := handlers.NewDefinitionsHandler(definitionService)
	executionsHandler := handlers.NewExecutionsHandler(executor, historyService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Definitions:    definitionsHandler,
		Executions:     executionsHandler,
		AuthMiddleware: authMiddleware,
	})

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
