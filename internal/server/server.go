// Package server contains the HTML handlers, the staff JSON API and the HTTP
// wiring of the blog.
package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"blogpage/internal/bootstrap"
	"blogpage/internal/config"
	"blogpage/internal/middleware"
	"blogpage/internal/models"
	"blogpage/internal/observability"
	"blogpage/internal/repository"
	"blogpage/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

//go:embed templates
var templateFS embed.FS

// Server holds all dependencies and provides handlers
type Server struct {
	config              *config.Config
	db                  *gorm.DB
	redis               *redis.Client
	app                 *fiber.App
	promMiddleware      *fiberprometheus.FiberPrometheus
	userRepo            repository.UserRepository
	profileRepo         repository.ProfileRepository
	postRepo            repository.PostRepository
	announcementRepo    repository.AnnouncementRepository
	images              *service.ImageService
	postService         *service.PostService
	announcementService *service.AnnouncementService
	userService         *service.UserService
}

// NewServer initializes the runtime from cfg and builds a Server on top.
func NewServer(cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, opts)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; logout revocation and rate limiting then degrade to no-ops.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if db == nil {
		return nil, errors.New("server: database is required")
	}

	var prom *fiberprometheus.FiberPrometheus
	if cfg.MetricsEnabled {
		prom = middleware.InitMetrics(observability.ServiceName)
	}

	s := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   prom,
		userRepo:         repository.NewUserRepository(db),
		profileRepo:      repository.NewProfileRepository(db),
		postRepo:         repository.NewPostRepository(db),
		announcementRepo: repository.NewAnnouncementRepository(db),
		images:           service.NewImageService(cfg),
	}

	s.userService = service.NewUserService(s.userRepo, s.profileRepo, s.images, 0)
	s.postService = service.NewPostService(s.postRepo, s.userRepo, service.AuthorOnly)
	s.announcementService = service.NewAnnouncementService(s.announcementRepo, s.userService.IsStaff)

	if err := s.images.EnsureDefaultAvatar(); err != nil {
		middleware.Logger.Warn("could not write default avatar",
			slog.String("media_root", s.images.MediaRoot()), slog.String("error", err.Error()))
	}

	return s, nil
}

// App returns the Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app == nil {
		s.app = s.newApp()
	}
	return s.app
}

func (s *Server) newApp() *fiber.App {
	views, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(views), ".html")
	engine.AddFuncMap(templateFuncs())

	bodyLimit := 4 * 1024 * 1024
	if mb := s.config.ImageMaxUploadSizeMB; mb > 0 && (mb+1)*1024*1024 > bodyLimit {
		bodyLimit = (mb + 1) * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		AppName:      "blogpage",
		Views:        engine,
		ViewsLayout:  "layouts/base",
		BodyLimit:    bodyLimit,
		ErrorHandler: s.handleError,
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestTracing())

	// Propagates request, trace and user IDs into the context-aware logger.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:8000,http://127.0.0.1:8000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return middleware.ErrRateLimitExceeded
		},
	}))

	app.Use(s.LoadSession())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/media", s.images.MediaRoot(), fiber.Static{ByteRange: true})

	// Blog pages. Specific /post/... routes come before /post/:id.
	app.Get("/", s.Home)
	app.Get("/post/latests", s.LatestPosts)
	app.Get("/post/new/", s.AuthRequired(), s.NewPostForm)
	app.Post("/post/new/", s.AuthRequired(),
		middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	app.Get("/post/:id/update/", s.AuthRequired(), s.EditPostForm)
	app.Post("/post/:id/update/", s.AuthRequired(), s.UpdatePost)
	app.Get("/post/:id/delete/", s.AuthRequired(), s.ConfirmDeletePost)
	app.Post("/post/:id/delete/", s.AuthRequired(), s.DeletePost)
	app.Delete("/post/:id/delete/", s.AuthRequired(), s.DeletePost)
	app.Get("/post/:id/", s.PostDetail)
	app.Get("/allposts/:username/", s.UserPosts)
	app.Get("/announcements/", s.Announcements)

	// Accounts
	app.Get("/register/", s.RegisterForm)
	app.Post("/register/", middleware.RateLimit(s.redis, 3, 10*time.Minute, "register"), s.Register)
	app.Get("/login/", s.LoginForm)
	app.Post("/login/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	app.Get("/logout_user/", s.AuthRequired(), s.LogoutUser)
	app.Get("/logout_view/", s.LogoutView)
	app.Get("/profile/", s.AuthRequired(), s.ProfileForm)
	app.Post("/profile/", s.AuthRequired(), s.UpdateProfile)
	app.Get("/resetpassword/", s.AuthRequired(), s.ResetPasswordForm)
	app.Post("/resetpassword/", s.AuthRequired(), s.ResetPassword)

	// Staff surface
	admin := app.Group("/admin", s.AuthRequired(), s.StaffRequired())
	admin.Get("/monitor", monitor.New(monitor.Config{Title: "blogpage metrics"}))

	api := admin.Group("/api")
	api.Get("/announcements", s.AdminListAnnouncements)
	api.Post("/announcements", s.AdminCreateAnnouncement)
	api.Delete("/announcements/:id", s.AdminDeleteAnnouncement)
	api.Get("/posts", s.AdminListPosts)
	api.Get("/users", s.AdminListUsers)
}

// handleError renders failures as an error page, or as JSON on the API paths.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}

	if wantsJSON(c) {
		return models.RespondWithError(c, status, err)
	}

	message := http.StatusText(status)
	var appErr *models.AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr) && appErr.Code != models.CodeInternal:
		message = appErr.Message
	case errors.As(err, &fiberErr) && status < fiber.StatusInternalServerError:
		message = fiberErr.Message
	}

	if rerr := render(c, status, "errors/error", fiber.Map{
		"Status":  status,
		"Message": message,
	}); rerr != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "failed to render error page",
			slog.String("error", rerr.Error()))
		return c.Status(status).SendString(message)
	}
	return nil
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.App().Listen(":" + s.config.Port)
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
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
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
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
