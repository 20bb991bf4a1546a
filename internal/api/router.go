package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/app"
	iauth "github.com/probuildhq/probuild/internal/auth"
	"github.com/probuildhq/probuild/internal/cache"
	"github.com/probuildhq/probuild/internal/handlers"
	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/notifications"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/mail"
)

// Deps bundles the shared infrastructure the router builds its services from.
type Deps struct {
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Mailer mail.Mailer
	Hub    *notifications.Hub
	Cache  cache.Store
}

// Services exposes the constructed service layer so the server can wire
// maintenance jobs against the same instances the handlers use.
type Services struct {
	Users         *services.UserService
	Sessions      *iauth.SessionService
	Preferences   *services.PreferencesService
	Notifications *services.NotificationService
	Invitations   *services.InvitationService
	Resets        *services.PasswordResetService
	Projects      *services.ProjectService
	Documents     *services.DocumentService
}

// NewRouter builds the Gin engine, constructs the service layer, and registers
// all routes with their middleware.
func NewRouter(deps Deps, cfg *app.Config) (*gin.Engine, *Services, error) {
	if deps.DB == nil {
		return nil, nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("config must be provided")
	}
	if deps.Mailer == nil {
		return nil, nil, fmt.Errorf("mailer must be provided")
	}
	if deps.Hub == nil {
		deps.Hub = notifications.NewHub()
	}

	svc, err := buildServices(deps, cfg)
	if err != nil {
		return nil, nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins}))
	} else {
		r.Use(middleware.CORS())
	}

	rateStore := middleware.NewMemoryRateStore()
	if deps.Cache != nil {
		rateStore = middleware.NewCacheRateStore(deps.Cache)
	}
	if cfg.RateLimit.Enabled {
		requests, window := cfg.RateLimit.Requests, cfg.RateLimit.Window
		if requests <= 0 {
			requests = 100
		}
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(rateStore, requests, window))
	}

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.DB))

	authHandler := handlers.NewAuthHandler(svc.Users, svc.Sessions, svc.Resets)
	invitationHandler := handlers.NewInvitationHandler(svc.Invitations, svc.Projects)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications, deps.Hub)
	projectHandler := handlers.NewProjectHandler(svc.Projects)
	profileHandler := handlers.NewProfileHandler(svc.Users, svc.Preferences)
	documentHandler := handlers.NewDocumentHandler(svc.Documents, svc.Projects)

	// Public auth routes get a tighter per-IP budget than the global limiter.
	auth := r.Group("/api/auth")
	auth.Use(middleware.RateLimit(rateStore, 20, time.Minute))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/password-reset/request", authHandler.RequestPasswordReset)
		auth.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)
	}

	// Public invitation routes: the token itself is the credential.
	r.GET("/api/invitations/:token", invitationHandler.Get)
	r.POST("/api/invitations/:token/decline", invitationHandler.Decline)

	// Protected routes
	requireAuth := middleware.Auth(deps.JWT)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	api.POST("/invitations/:token/accept", invitationHandler.Accept)

	ntf := api.Group("/notifications")
	{
		ntf.GET("", notificationHandler.List)
		ntf.GET("/summary", notificationHandler.Summary)
		ntf.GET("/stream", notificationHandler.Stream)
		ntf.POST("/read-all", notificationHandler.MarkAllRead)
		ntf.POST("/:id/read", notificationHandler.MarkRead)
		ntf.DELETE("/:id", notificationHandler.Delete)
	}

	projects := api.Group("/projects")
	{
		projects.POST("", projectHandler.Create)
		projects.GET("", projectHandler.List)
		projects.GET("/:id", projectHandler.Get)
		projects.GET("/:id/members", projectHandler.ListMembers)
		projects.PUT("/:id", projectHandler.Update)
		projects.DELETE("/:id/members/:userId", projectHandler.RemoveMember)
		projects.POST("/:id/invitations", invitationHandler.Create)
		projects.GET("/:id/invitations", invitationHandler.ListForProject)
		projects.POST("/:id/documents", documentHandler.Upload)
		projects.GET("/:id/documents", documentHandler.List)
	}

	api.GET("/documents/:documentId", documentHandler.Download)
	api.DELETE("/documents/:documentId", documentHandler.Delete)

	profile := api.Group("/profile")
	{
		profile.PUT("", profileHandler.Update)
		profile.PUT("/password", profileHandler.ChangePassword)
		profile.GET("/preferences", profileHandler.GetPreferences)
		profile.PUT("/preferences", profileHandler.UpdatePreferences)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, svc, nil
}

func buildServices(deps Deps, cfg *app.Config) (*Services, error) {
	sessionCfg := cfg.Auth.SessionServiceConfig()
	if deps.Cache != nil {
		sessionCfg.Cache = iauth.NewSessionStoreCache(deps.Cache)
	}
	sessions, err := iauth.NewSessionService(deps.DB, deps.JWT, sessionCfg)
	if err != nil {
		return nil, err
	}

	users, err := services.NewUserService(deps.DB)
	if err != nil {
		return nil, err
	}

	preferences, err := services.NewPreferencesService(deps.DB)
	if err != nil {
		return nil, err
	}

	notifier, err := services.NewNotificationService(deps.DB, deps.Hub, preferences)
	if err != nil {
		return nil, err
	}

	var invitationOpts []services.InvitationOption
	if cfg.Server.BaseURL != "" {
		invitationOpts = append(invitationOpts, services.WithInvitationBaseURL(cfg.Server.BaseURL))
	}
	if cfg.Invitations.Expiry > 0 {
		invitationOpts = append(invitationOpts, services.WithInvitationExpiry(cfg.Invitations.Expiry))
	}
	invitations, err := services.NewInvitationService(deps.DB, deps.Mailer, notifier, invitationOpts...)
	if err != nil {
		return nil, err
	}

	var resetOpts []services.ResetOption
	if cfg.Server.BaseURL != "" {
		resetOpts = append(resetOpts, services.WithResetBaseURL(cfg.Server.BaseURL))
	}
	if cfg.PasswordReset.Expiry > 0 {
		resetOpts = append(resetOpts, services.WithResetExpiry(cfg.PasswordReset.Expiry))
	}
	if cfg.PasswordReset.Cooldown > 0 {
		resetOpts = append(resetOpts, services.WithResetCooldown(cfg.PasswordReset.Cooldown))
	}
	resets, err := services.NewPasswordResetService(deps.DB, deps.Mailer, sessions, deps.Cache, resetOpts...)
	if err != nil {
		return nil, err
	}

	projects, err := services.NewProjectService(deps.DB)
	if err != nil {
		return nil, err
	}

	var documentOpts []services.DocumentOption
	if cfg.Uploads.MaxBytes > 0 {
		documentOpts = append(documentOpts, services.WithDocumentMaxBytes(cfg.Uploads.MaxBytes))
	}
	documents, err := services.NewDocumentService(deps.DB, cfg.Uploads.Dir, documentOpts...)
	if err != nil {
		return nil, err
	}

	return &Services{
		Users:         users,
		Sessions:      sessions,
		Preferences:   preferences,
		Notifications: notifier,
		Invitations:   invitations,
		Resets:        resets,
		Projects:      projects,
		Documents:     documents,
	}, nil
}
