// Package server contains HTTP and WebSocket handlers for the feed API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "huddle/docs" // swagger docs
	"huddle/internal/auth"
	"huddle/internal/config"
	"huddle/internal/featureflags"
	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/observability"
	"huddle/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized collaborators a Server routes to.
type Deps struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        *redis.Client
	Tokens       *auth.Issuer
	Hub          *notifications.Hub
	FeatureFlags *featureflags.Manager
	Communities  *service.CommunityService
	Posts        *service.PostService
	Users        *service.UserService
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	tokens         *auth.Issuer
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	communityService *service.CommunityService
	postService      *service.PostService
	userService      *service.UserService
}

// NewServer builds the fiber app with middleware and routes.
func NewServer(d Deps) *Server {
	s := &Server{
		config:           d.Config,
		db:               d.DB,
		redis:            d.Redis,
		tokens:           d.Tokens,
		promMiddleware:   middleware.InitMetrics(observability.ServiceName),
		rateLimiter:      middleware.NewRateLimiter(d.Redis, d.Config.Env),
		hub:              d.Hub,
		featureFlags:     d.FeatureFlags,
		communityService: d.Communities,
		postService:      d.Posts,
		userService:      d.Users,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "Huddle Feed API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return models.Respond(c, appErr)
	}
	observability.Logger.ErrorContext(c.UserContext(), "unhandled_error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Propagates request, user and trace IDs into the request context
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.MetricsMiddleware(s.promMiddleware))

	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.rateLimiterDisabled()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

func (s *Server) rateLimiterDisabled() bool {
	switch s.config.Env {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	s.promMiddleware.RegisterAt(app, "/metrics")

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/logout", s.Logout)

	authed := s.AuthRequired()

	users := api.Group("/user", authed)
	users.Get("/me", s.GetMe)
	users.Put("/me", s.UpdateMe)
	users.Delete("/me", s.DeleteMe)
	users.Get("/me/features", s.GetMyFeatures)
	users.Get("/:userId", s.GetUserProfile)

	posts := api.Group("/post", authed)
	posts.Post("/", s.rateLimiter.Handler(10, time.Minute, "post", middleware.FailOpen), s.CreatePost)
	posts.Post("/:postId/like", s.rateLimiter.Handler(60, time.Minute, "like", middleware.FailOpen), s.ToggleLike)

	communities := api.Group("/community", authed)
	communities.Post("/", s.rateLimiter.Handler(5, 10*time.Minute, "community_create", middleware.FailOpen), s.CreateCommunity)
	// Specific routes before generic /:slug
	communities.Get("/mine", s.GetMyCommunities)
	communities.Get("/explore", s.ExploreCommunities)
	communities.Get("/:slug", s.GetCommunityDetail)
	communities.Post("/:communityId/join", s.JoinCommunity)
	communities.Delete("/:communityId/exit", s.ExitCommunity)
	communities.Put("/:communityId", s.UpdateCommunity)
	communities.Delete("/:communityId", s.DeleteCommunity)

	ws := api.Group("/ws")
	ws.Post("/ticket", authed, s.rateLimiter.Handler(20, time.Minute, "ws_ticket", middleware.FailClosed), s.IssueWSTicket)
	ws.Get("/", authed, s.WebSocketUpgrade, s.WebSocketFeedHandler())
}

// LivenessCheck handles GET /health/live
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// ReadinessCheck handles GET /health/ready. Redis is optional: without a
// client it reports "disabled" and does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	observability.Logger.Info("server_starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
