package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"postflow/docs"
	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/database"
	"postflow/internal/database/migration"
	handlers "postflow/internal/http/handler"
	"postflow/internal/http/middleware"
	"postflow/internal/llm"
	"postflow/internal/logger"
	"postflow/internal/metrics"
	"postflow/internal/model"
	"postflow/internal/notify"
	"postflow/internal/otel"
	"postflow/internal/repository/postgres"
	"postflow/internal/retry"
	"postflow/internal/service"
	"postflow/internal/storage"
)

// @title        Postflow API
// @version      1.0
// @description  Upload images, generate captions and move posts through team and client approval.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in           header
// @name         Authorization
func main() {
	cfg := config.Load()
	log := logger.Stdout(cfg.Location()).With("api")

	if err := run(cfg, log); err != nil {
		log.Error("server_exit", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return err
	}

	objStore, err := storage.New(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline, err := metrics.NewPipeline(registry)
	if err != nil {
		return err
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		return err
	}

	mailer, err := notify.New(cfg.SMTP, log)
	if err != nil {
		return err
	}
	notifier := notify.NewNotifier(mailer, retry.Default, cfg.SMTP.BaseURL, cfg.SMTP.AdminEmail, log)

	users := postgres.NewUserPostgres(db)
	posts := postgres.NewPostPostgres(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	authSvc := service.NewAuthService(users, tokens, notifier, cfg.Auth.BcryptCost, log)
	postSvc := service.NewPostService(posts, objStore, log)
	workflowSvc := service.NewWorkflowService(posts, users, notifier, pipeline, log)
	uploadSvc := service.NewUploadService(users, posts, objStore, generators(cfg.LLM, log), pipeline, log, service.UploadOptions{
		MaxBytes: cfg.Storage.MaxBytes,
		MaxTags:  cfg.LLM.MaxTags,
	})

	app := fiber.New(fiber.Config{
		AppName:      "postflow",
		BodyLimit:    int(2 * cfg.Storage.MaxBytes),
		ErrorHandler: handlers.ErrorHandler(cfg.IsDevelopment()),
		// Span attributes and metric labels keep request strings past the handler.
		Immutable: true,
	})

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:       db,
		Auth:     authSvc,
		Posts:    postSvc,
		Workflow: workflowSvc,
		Upload:   uploadSvc,
		Store:    objStore,
		Tokens:   tokens,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Config:   cfg,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_listening", map[string]any{"addr": ":" + cfg.Port, "env": cfg.Env})
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server_shutdown", nil)
	return app.ShutdownWithTimeout(10 * time.Second)
}

// generators builds a retrying client for every provider with a key.
func generators(cfg config.LLMConfig, log *logger.Logger) *llm.Registry {
	httpClient := llm.NewHTTPClient(2 * cfg.Timeout)
	policy := retry.Policy{Attempts: cfg.MaxAttempts, Step: time.Second}

	var gens []llm.Generator
	if cfg.OpenAIKey != "" {
		gens = append(gens, llm.NewResilient(llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, httpClient), cfg.Timeout, policy, log))
	}
	if cfg.GeminiKey != "" {
		gens = append(gens, llm.NewResilient(llm.NewGemini(cfg.GeminiKey, cfg.GeminiModel, cfg.GeminiBaseURL, httpClient), cfg.Timeout, policy, log))
	}
	if len(gens) == 0 {
		log.Warn("llm_not_configured", nil, map[string]any{"hint": "set OPENAI_API_KEY or GEMINI_API_KEY"})
	}
	return llm.NewRegistry(model.Provider(strings.ToLower(cfg.Provider)), gens...)
}
