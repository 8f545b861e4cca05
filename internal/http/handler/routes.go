package handler

import (
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"postflow/internal/auth"
	"postflow/internal/config"
	"postflow/internal/http/middleware"
	"postflow/internal/model"
	"postflow/internal/service"
	"postflow/internal/storage"
)

// Deps groups what the HTTP layer needs from the rest of the application.
type Deps struct {
	DB       *sql.DB
	Auth     service.AuthService
	Posts    service.PostService
	Workflow service.WorkflowService
	Upload   service.UploadService
	Store    storage.Storage
	Tokens   *auth.TokenManager
	Validate *validator.Validate
	Config   *config.AppConfig
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Validate == nil {
		d.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	cfg := d.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "local" {
		if cfg.Storage.UploadDir != "" {
			app.Static("/uploads", cfg.Storage.UploadDir, fiber.Static{MaxAge: 3600})
		}
	}

	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins: orDefault(cfg.HTTP.CORSOrigins, "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	requireAuth := middleware.RequireAuth(d.Tokens)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	authGroup := api.Group("/auth")
	if cfg.HTTP.RateLimitMax > 0 {
		authGroup.Use(limiter.New(limiter.Config{
			Max:        cfg.HTTP.RateLimitMax,
			Expiration: orDuration(cfg.HTTP.RateLimitWindow, 15*time.Minute),
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again later")
			},
		}))
	}
	authGroup.Post("/register", Register(d.Auth, d.Validate))
	authGroup.Post("/login", Login(d.Auth, d.Validate))
	authGroup.Get("/verify-email", VerifyEmail(d.Auth))
	authGroup.Post("/forgot-password", ForgotPassword(d.Auth, d.Validate))
	authGroup.Post("/reset-password", ResetPassword(d.Auth, d.Validate))
	authGroup.Get("/me", requireAuth, Me(d.Auth))
	authGroup.Post("/approve", requireAuth, adminOnly, ApproveUser(d.Auth, d.Validate))

	posts := api.Group("/posts", requireAuth)
	posts.Post("/upload", UploadPost(d.Upload, orDefault(cfg.Storage.TmpDir, "uploads/tmp")))
	posts.Get("/", ListPosts(d.Posts))
	posts.Get("/queue", adminOnly, ReviewQueue(d.Workflow))
	posts.Get("/:postId", GetPost(d.Posts))
	posts.Put("/:postId", UpdatePost(d.Posts))
	posts.Delete("/:postId", DeletePost(d.Posts))
	posts.Get("/:postId/media", PostMedia(d.Posts, d.Store))
	posts.Post("/:postId/approve", ApprovePost(d.Workflow))
	posts.Post("/:postId/client-approve", ClientApprovePost(d.Workflow))
	posts.Post("/:postId/reject", RejectPost(d.Workflow))
	posts.Post("/:postId/publish", PublishPost(d.Workflow))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
