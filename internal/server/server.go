// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	_ "github.com/Maktab119TinyInstagram/ESPA-Social-Meda/docs" // swagger docs
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/auth"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/database"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/featureflags"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/mail"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/media"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/middleware"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/notifications"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	hashtagRepo  repository.HashtagRepository
	reactionRepo repository.ReactionRepository
	followRepo   repository.FollowRepository
	otpRepo      repository.OTPRepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	tokens     *auth.TokenManager
	sessions   auth.SessionStore
	reconciler *auth.Reconciler
	mailer     mail.Mailer
	mediaStore media.Store

	authService       *service.AuthService
	otpService        *service.OTPService
	userService       *service.UserService
	postService       *service.PostService
	mediaService      *service.MediaService
	commentService    *service.CommentService
	engagementService *service.EngagementService
	followService     *service.FollowService
}

// Option overrides a dependency that is otherwise built from config.
type Option func(*Server)

// WithMailer replaces the mail backend selected by MAIL_BACKEND.
func WithMailer(m mail.Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

// WithMediaStore replaces the media backend selected by MEDIA_BACKEND.
func WithMediaStore(store media.Store) Option {
	return func(s *Server) { s.mediaStore = store }
}

// WithSessionStore replaces the Redis-backed session store.
func WithSessionStore(store auth.SessionStore) Option {
	return func(s *Server) { s.sessions = store }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient(), opts...)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("espa-api"),
		userRepo:       repository.NewUserRepository(db),
		postRepo: repository.NewPostRepository(db, repository.TrendingConfig{
			Window:        cfg.TrendingWindow,
			LikeWeight:    cfg.TrendingLikeWeight,
			CommentWeight: cfg.TrendingCommentWeight,
		}),
		commentRepo:  repository.NewCommentRepository(db),
		hashtagRepo:  repository.NewHashtagRepository(db),
		reactionRepo: repository.NewReactionRepository(db),
		followRepo:   repository.NewFollowRepository(db),
		otpRepo:      repository.NewOTPRepository(db),
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
		notifier:     notifications.NewNotifier(redisClient),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.mailer == nil {
		mailer, err := mail.New(cfg)
		if err != nil {
			return nil, err
		}
		s.mailer = mailer
	}
	if s.mediaStore == nil {
		store, err := media.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		s.mediaStore = store
	}
	if s.sessions == nil {
		if redisClient != nil {
			s.sessions = auth.NewRedisSessionStore(redisClient, cfg.SessionTTL)
		} else {
			s.sessions = auth.NewMemorySessionStore(cfg.SessionTTL)
		}
	}

	s.tokens = auth.NewTokenManager(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	s.reconciler = auth.NewDefaultReconciler(s.sessions, s.tokens, s.userRepo)

	s.userService = service.NewUserService(s.userRepo)
	s.otpService = service.NewOTPService(s.otpRepo, cfg.OTPExpiry)
	s.authService = service.NewAuthService(s.userRepo, s.otpService, s.tokens, s.sessions, s.mailer)
	s.mediaService = service.NewMediaService(s.mediaStore, cfg)
	s.postService = service.NewPostService(s.postRepo, s.hashtagRepo, s.userRepo, s.mediaService, s.featureFlags, s.userService.IsAdmin)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.notifier, s.userService.IsAdmin)
	s.engagementService = service.NewEngagementService(s.reactionRepo, s.postRepo, s.commentRepo, s.notifier)
	s.followService = service.NewFollowService(s.followRepo, s.userRepo, s.notifier)

	if redisClient != nil {
		s.hub = notifications.NewHub()
	}

	return s, nil
}

func (s *Server) sessionCookie() middleware.SessionCookieConfig {
	return middleware.SessionCookieConfig{TTL: s.config.SessionTTL, Secure: s.config.IsProduction()}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	// Identity is resolved once per request; protected groups only check it.
	app.Use(middleware.Identify(s.reconciler, s.sessionCookie()))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "ESPA Backend Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	otp := authGroup.Group("/otp", s.FeatureRequired(featureflags.OTPLogin))
	otp.Post("/request", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "otp_request"), s.RequestOTP)
	otp.Post("/verify", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "otp_verify"), s.VerifyOTP)
	authGroup.Post("/token/refresh", s.RefreshToken)
	authGroup.Post("/logout", s.Logout)

	// Profile of the current user
	profile := api.Group("/profile", middleware.AuthRequired)
	profile.Get("/", s.GetMyProfile)
	profile.Put("/", s.UpdateMyProfile)
	profile.Post("/password", s.ChangePassword)

	// Users: specific /:id/:resource routes before the generic /:id route
	users := api.Group("/users")
	users.Get("/search", s.SearchUsers)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id", s.GetUserProfile)

	// Posts
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/feed", middleware.AuthRequired, s.GetFeed)
	posts.Get("/explore", s.GetExplore)
	posts.Get("/search", middleware.RateLimit(
		s.redis, 10, time.Minute, "search"), s.SearchPosts)
	posts.Post("/", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/like", middleware.AuthRequired, s.LikePost)
	posts.Delete("/:id/like", middleware.AuthRequired, s.UnlikePost)
	posts.Get("/:id", s.GetPost)
	posts.Put("/:id", middleware.AuthRequired, s.UpdatePost)
	posts.Delete("/:id", middleware.AuthRequired, s.DeletePost)

	api.Post("/media", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 20, 5*time.Minute, "upload_media"), s.UploadMedia)

	// Hashtags
	hashtags := api.Group("/hashtags")
	hashtags.Get("/", s.GetHashtags)
	hashtags.Get("/:title/posts", s.GetHashtagPosts)

	// Comments
	comments := api.Group("/comments", middleware.AuthRequired)
	comments.Post("/:id/reply", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateReply)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	// Reactions on any target
	reactions := api.Group("/reactions", middleware.AuthRequired)
	reactions.Post("/", s.React)
	reactions.Delete("/:targetType/:targetId", s.Unreact)

	// Follows
	follows := api.Group("/follows", middleware.AuthRequired)
	follows.Post("/", s.Follow)
	follows.Delete("/:userId", s.Unfollow)

	// Activity stream
	api.Post("/ws/ticket", middleware.AuthRequired, s.FeatureRequired(featureflags.ActivityWS), s.IssueWSTicket)
	api.Get("/ws", s.FeatureRequired(featureflags.ActivityWS), s.WSTicketAuth, s.WebsocketHandler())

	// Admin routes
	admin := api.Group("/admin", middleware.AuthRequired, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/users/:id/soft-delete", s.SoftDeleteUser)
	admin.Post("/users/:id/restore", s.RestoreUser)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is considered required for full readiness in this app
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "ESPA",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := middleware.UserIDFromCtx(c)

		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil && !models.IsCode(err, models.CodeNotFound) {
			return s.respondError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// FeatureRequired hides a route group while the named flag is off.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := middleware.UserIDFromCtx(c)
		if s.featureFlags != nil && !s.featureFlags.Enabled(flag, userID) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				&models.AppError{Code: models.CodeNotFound, Message: "This feature is not enabled"})
		}
		return c.Next()
	}
}

// NewApp builds the Fiber app with middleware and routes but does not listen.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "ESPA Social API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "unhandled request error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// bodyLimit leaves room for a post's worth of uploads.
func (s *Server) bodyLimit() int {
	perFile := service.DefaultMediaMaxUploadSizeMB
	if s.config.ImageMaxUploadSizeMB > 0 {
		perFile = s.config.ImageMaxUploadSizeMB
	}
	return (perFile*service.MaxMediaPerPost + 1) * 1024 * 1024
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				observability.GlobalLogger.Error("failed to start activity wiring",
					"hub", s.hub.Name(), "error", err.Error())
			}
		}()
	}

	observability.GlobalLogger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.GlobalLogger.Error("error shutting down HTTP server", "error", err.Error())
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			observability.GlobalLogger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err.Error())
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.GlobalLogger.Error("error closing sql DB", "error", cerr.Error())
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.GlobalLogger.Error("error closing redis", "error", rerr.Error())
		}
	}

	observability.GlobalLogger.Info("server shutdown complete")
	return nil
}
