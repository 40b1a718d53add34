package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MONGO_DATABASE", "DATABASE_ID", "AUTH_PROVIDER", "RATE_LIMIT_PER_MINUTE", "OPTIMISTIC_READS", "NOTIFICATIONS_COLLECTION_ID"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.AuthProvider != "jwt" || cfg.RateLimitPerMinute != 120 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DatabaseID != "animal_welfare" {
		t.Fatalf("database id should default to the mongo database, got %q", cfg.DatabaseID)
	}
	if cfg.OptimisticReads {
		t.Fatalf("optimistic reads should default off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONGO_DATABASE", "ccf")
	t.Setenv("DATABASE_ID", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	t.Setenv("OPTIMISTIC_READS", "true")
	t.Setenv("NOTIFICATIONS_COLLECTION_ID", "notifications")

	cfg := Load()
	if cfg.DatabaseID != "ccf" || cfg.RateLimitPerMinute != 120 || !cfg.OptimisticReads {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.NotificationsCollectionID != "notifications" {
		t.Fatalf("collection id not read")
	}
}

func TestWarningsNameMissingCollections(t *testing.T) {
	cfg := &Config{NotificationsCollectionID: "notifications", RedisURL: "redis://localhost:6379"}
	warnings := strings.Join(cfg.Warnings(), "\n")
	if strings.Contains(warnings, "NOTIFICATIONS_COLLECTION_ID") {
		t.Fatalf("configured collection reported missing: %s", warnings)
	}
	for _, key := range []string{"METRICS_COLLECTION_ID", "ACTIVITIES_COLLECTION_ID", "FIREBASE_CREDENTIALS_PATH"} {
		if !strings.Contains(warnings, key) {
			t.Fatalf("expected warning for %s in %s", key, warnings)
		}
	}
}

func TestStoreCollectionsFallBackToDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.NotificationsCollection() != DefaultNotificationsCollection ||
		cfg.MetricsCollection() != DefaultMetricsCollection ||
		cfg.ActivitiesCollection() != DefaultActivitiesCollection {
		t.Fatalf("empty ids should use default collection names")
	}
	if cfg.NotificationsCollectionID != "" {
		t.Fatalf("defaults must not leak into the realtime ids")
	}

	cfg = &Config{NotificationsCollectionID: "alerts", MetricsCollectionID: "metrics", ActivitiesCollectionID: "feed"}
	if cfg.NotificationsCollection() != "alerts" || cfg.MetricsCollection() != "metrics" || cfg.ActivitiesCollection() != "feed" {
		t.Fatalf("configured ids should name the collections")
	}
}
