package router

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/handlers"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/middleware"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/reconciler"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/repositories"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/pkg/config"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/pkg/firebase"
)

// Services are the long-lived pieces main needs after routing is set up.
type Services struct {
	Notifications *service.NotificationService
	Preferences   *service.PreferencesService
	Impact        *service.ImpactService
	Push          *service.PushDispatcher // nil without Firebase messaging

	NotificationRepo *repositories.MongoNotificationRepository
	MetricsRepo      *repositories.MongoMetricsRepository
	ActivityRepo     *repositories.MongoActivityRepository
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, fb *firebase.App, source realtime.Source) *Services {
	// AutoMigrate PostgreSQL models
	err := db.Postgres.AutoMigrate(
		&models.NotificationPreferences{},
		&models.DeviceToken{},
	)
	if err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// Health checks - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/ready", handlers.ReadinessCheck(map[string]func(ctx context.Context) error{
		"postgres": db.PingPostgres,
		"mongo":    db.PingMongo,
	}))

	// --- Initialize Repositories ---
	mongoDB := db.MongoDatabase()
	notificationRepo := repositories.NewMongoNotificationRepository(mongoDB, cfg.NotificationsCollection())
	metricsRepo := repositories.NewMongoMetricsRepository(mongoDB, cfg.MetricsCollection())
	activityRepo := repositories.NewMongoActivityRepository(mongoDB, cfg.ActivitiesCollection())
	preferencesRepo := repositories.NewPostgresPreferencesRepository(db.Postgres)
	deviceRepo := repositories.NewPostgresDeviceTokenRepository(db.Postgres)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := notificationRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("Failed to ensure notification indexes: %v", err)
	}
	cancel()

	// --- Initialize Services ---
	preferencesService := service.NewPreferencesService(preferencesRepo, deviceRepo)
	notificationService := service.NewNotificationService(notificationRepo, preferencesService)
	impactService := service.NewImpactService(metricsRepo, activityRepo)

	var push *service.PushDispatcher
	if fb != nil && fb.MessagingClient != nil {
		push = service.NewPushDispatcher(fb.MessagingClient, preferencesService, preferencesService, realtime.DefaultBackoff())
	}

	// --- Authentication and rate limiting ---
	verifier := newVerifier(cfg, fb)
	limiter := newLimiter(cfg, db)

	api := e.Group("/api/v1")
	api.Use(middleware.Auth(verifier))
	api.Use(middleware.RateLimit(limiter))
	log.Printf("%s authentication and rate limiting applied to /api/v1 group.", cfg.AuthProvider)

	handlers.NewNotificationHandler(notificationService).RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	handlers.NewPreferencesHandler(preferencesService).RegisterPreferencesRoutes(api)
	log.Println("Preference and device routes configured.")

	handlers.NewImpactHandler(impactService).RegisterImpactRoutes(api)
	log.Println("Impact routes configured.")

	// --- Websocket streams ---
	wsAuthed := e.Group("/ws")
	wsAuthed.Use(middleware.Auth(verifier))
	wsPublic := e.Group("/ws")

	opts := reconciler.Options{Backoff: realtime.DefaultBackoff()}
	stream := handlers.NewStreamHandler(
		func() *reconciler.NotificationReconciler {
			return reconciler.NewNotificationReconciler(notificationService, source, cfg.DatabaseID, cfg.NotificationsCollectionID, opts)
		},
		func() *reconciler.ImpactReconciler {
			return reconciler.NewImpactReconciler(impactService, source, cfg.DatabaseID, cfg.MetricsCollectionID, cfg.ActivitiesCollectionID, realtime.DefaultBackoff())
		},
		cfg.OptimisticReads,
	)
	stream.RegisterStreamRoutes(wsAuthed, wsPublic)
	log.Println("Websocket stream routes configured.")

	return &Services{
		Notifications:    notificationService,
		Preferences:      preferencesService,
		Impact:           impactService,
		Push:             push,
		NotificationRepo: notificationRepo,
		MetricsRepo:      metricsRepo,
		ActivityRepo:     activityRepo,
	}
}

func newVerifier(cfg *config.Config, fb *firebase.App) middleware.TokenVerifier {
	if cfg.AuthProvider == "firebase" {
		if fb == nil || fb.AuthClient == nil {
			log.Fatal("AUTH_PROVIDER is firebase but Firebase is not initialized")
		}
		return middleware.NewFirebaseVerifier(fb.AuthClient)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}
	return middleware.NewJWTVerifier(cfg.JWTSecret)
}

func newLimiter(cfg *config.Config, db *config.DB) middleware.Limiter {
	if db.Redis != nil {
		return middleware.NewRedisLimiter(db.Redis, cfg.RateLimitPerMinute, time.Minute)
	}
	return middleware.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
}
