package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string

	AuthProvider string // jwt or firebase
	JWTSecret    string

	RedisURL           string
	RateLimitPerMinute int

	// Logical ids the realtime topics are built from. A set collection id
	// doubles as the MongoDB collection name; an empty one leaves the store
	// on its default name with live updates off.
	DatabaseID                string
	NotificationsCollectionID string
	MetricsCollectionID       string
	ActivitiesCollectionID    string

	OptimisticReads bool
}

// Store collection names used when no collection id is configured.
const (
	DefaultNotificationsCollection = "notifications"
	DefaultMetricsCollection       = "impact_metrics"
	DefaultActivitiesCollection    = "recent_activities"
)

// Load reads the configuration from the environment, after loading a .env
// file when one is present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	mongoDatabase := getEnv("MONGO_DATABASE", "animal_welfare")
	return &Config{
		Port:                      getEnv("PORT", "8080"),
		Env:                       getEnv("ENV", "development"),
		FirebaseCredentialsPath:   getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresConnStr:           getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                  getEnv("MONGO_URI", ""),
		MongoDatabase:             mongoDatabase,
		AuthProvider:              getEnv("AUTH_PROVIDER", "jwt"),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RateLimitPerMinute:        getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		DatabaseID:                getEnv("DATABASE_ID", mongoDatabase),
		NotificationsCollectionID: getEnv("NOTIFICATIONS_COLLECTION_ID", ""),
		MetricsCollectionID:       getEnv("METRICS_COLLECTION_ID", ""),
		ActivitiesCollectionID:    getEnv("ACTIVITIES_COLLECTION_ID", ""),
		OptimisticReads:           getEnvBool("OPTIMISTIC_READS", false),
	}
}

// Warnings lists settings that are absent but not fatal.
func (c *Config) Warnings() []string {
	var warnings []string
	for _, setting := range []struct{ key, value string }{
		{"NOTIFICATIONS_COLLECTION_ID", c.NotificationsCollectionID},
		{"METRICS_COLLECTION_ID", c.MetricsCollectionID},
		{"ACTIVITIES_COLLECTION_ID", c.ActivitiesCollectionID},
	} {
		if setting.value == "" {
			warnings = append(warnings, setting.key+" is not set; live updates for it are disabled and its default collection is used")
		}
	}
	if c.FirebaseCredentialsPath == "" {
		warnings = append(warnings, "FIREBASE_CREDENTIALS_PATH is not set; push delivery is disabled")
	}
	if c.RedisURL == "" {
		warnings = append(warnings, "REDIS_URL is not set; rate limits are per instance")
	}
	return warnings
}

// NotificationsCollection is the MongoDB collection notifications live in.
func (c *Config) NotificationsCollection() string {
	return orDefault(c.NotificationsCollectionID, DefaultNotificationsCollection)
}

func (c *Config) MetricsCollection() string {
	return orDefault(c.MetricsCollectionID, DefaultMetricsCollection)
}

func (c *Config) ActivitiesCollection() string {
	return orDefault(c.ActivitiesCollectionID, DefaultActivitiesCollection)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
