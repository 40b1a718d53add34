package repositories

import (
	"context"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MetricsRepository stores impact metric snapshots
type MetricsRepository interface {
	Latest(ctx context.Context) (*models.ImpactMetrics, error)
	Insert(ctx context.Context, metrics *models.ImpactMetrics) error
}

// ActivityRepository stores the public activity feed
type ActivityRepository interface {
	Recent(ctx context.Context, limit int64) ([]models.RecentActivity, error)
	Create(ctx context.Context, activity *models.RecentActivity) error
}

// MongoMetricsRepository implements MetricsRepository for MongoDB
type MongoMetricsRepository struct {
	collection *mongo.Collection
}

func NewMongoMetricsRepository(db *mongo.Database, collectionID string) *MongoMetricsRepository {
	return &MongoMetricsRepository{collection: db.Collection(collectionID)}
}

func (r *MongoMetricsRepository) Collection() *mongo.Collection {
	return r.collection
}

// Latest returns the most recent snapshot, mongo.ErrNoDocuments when none exists
func (r *MongoMetricsRepository) Latest(ctx context.Context) (*models.ImpactMetrics, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "last_updated", Value: -1}})
	var metrics models.ImpactMetrics
	if err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (r *MongoMetricsRepository) Insert(ctx context.Context, metrics *models.ImpactMetrics) error {
	_, err := r.collection.InsertOne(ctx, metrics)
	return err
}

// MongoActivityRepository implements ActivityRepository for MongoDB
type MongoActivityRepository struct {
	collection *mongo.Collection
}

func NewMongoActivityRepository(db *mongo.Database, collectionID string) *MongoActivityRepository {
	return &MongoActivityRepository{collection: db.Collection(collectionID)}
}

func (r *MongoActivityRepository) Collection() *mongo.Collection {
	return r.collection
}

func (r *MongoActivityRepository) Recent(ctx context.Context, limit int64) ([]models.RecentActivity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	activities := []models.RecentActivity{}
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *MongoActivityRepository) Create(ctx context.Context, activity *models.RecentActivity) error {
	_, err := r.collection.InsertOne(ctx, activity)
	return err
}
