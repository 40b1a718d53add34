package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/router"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/pkg/config"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/pkg/firebase"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()
	for _, warning := range cfg.Warnings() {
		log.Printf("Warning: %s", warning)
	}

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Firebase is optional unless it is the auth provider
	var firebaseApp *firebase.App
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	// One change stream per collection feeds every subscriber through the hub
	hub := realtime.NewHub()
	defer hub.Close()
	// Watchers keep retrying for the life of the process
	streamBackoff := realtime.DefaultBackoff()
	streamBackoff.MaxAttempts = 0
	source := realtime.NewMongoSource(hub, streamBackoff)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Setup global middleware
	config.SetupMiddleware(e, cfg)

	// Validator
	e.Validator = validators.NewValidator()

	// Setup routes and dependencies
	services := router.SetupRoutes(e, cfg, db, firebaseApp, source)

	g, gctx := errgroup.WithContext(ctx)

	watch(gctx, g, source, cfg.DatabaseID, cfg.NotificationsCollectionID, services.NotificationRepo.Collection(), realtime.JSONCodec[models.Notification]())
	watch(gctx, g, source, cfg.DatabaseID, cfg.MetricsCollectionID, services.MetricsRepo.Collection(), realtime.JSONCodec[models.ImpactMetrics]())
	watch(gctx, g, source, cfg.DatabaseID, cfg.ActivitiesCollectionID, services.ActivityRepo.Collection(), realtime.JSONCodec[models.RecentActivity]())

	if services.Push != nil {
		if topic, err := realtime.Topic(cfg.DatabaseID, cfg.NotificationsCollectionID); err == nil {
			g.Go(func() error {
				if err := services.Push.Run(gctx, source, topic); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("Push delivery stopped: %v", err)
				}
				return nil
			})
		}
	}

	// Start server
	g.Go(func() error {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}

// watch starts a change stream for collectionID unless it is not configured.
func watch(ctx context.Context, g *errgroup.Group, source *realtime.MongoSource, databaseID, collectionID string, coll *mongo.Collection, codec realtime.Codec) {
	topic, err := realtime.Topic(databaseID, collectionID)
	if err != nil {
		log.Printf("Not watching %q: %v", collectionID, err)
		return
	}
	g.Go(func() error {
		if err := source.Watch(ctx, topic, coll, codec); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Change stream for %s stopped: %v", topic, err)
		}
		return nil
	})
}
