package repositories

import (
	"context"
	"time"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int64) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	ListUnreadIDs(ctx context.Context, recipientID string) ([]string, error)
	MarkRead(ctx context.Context, recipientID, id string, at time.Time) error
	Delete(ctx context.Context, recipientID, id string) error
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a repository over the given collection
func NewMongoNotificationRepository(db *mongo.Database, collectionID string) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection(collectionID)}
}

// Collection exposes the backing collection for change-stream watchers
func (r *MongoNotificationRepository) Collection() *mongo.Collection {
	return r.collection
}

// EnsureIndexes creates the indexes list and count queries rely on
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "read", Value: 1}}},
	})
	return err
}

func (r *MongoNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	_, err := r.collection.InsertOne(ctx, notification)
	return err
}

// ListByRecipient returns up to limit notifications, newest first
func (r *MongoNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"recipient_id": recipientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *MongoNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"recipient_id": recipientID, "read": false})
}

func (r *MongoNotificationRepository) ListUnreadIDs(ctx context.Context, recipientID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"recipient_id": recipientID, "read": false}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// MarkRead flips an unread notification to read. Marking an already-read
// notification is a no-op; an unknown id yields mongo.ErrNoDocuments.
func (r *MongoNotificationRepository) MarkRead(ctx context.Context, recipientID, id string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipientID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "recipient_id": recipientID})
	if err != nil {
		return err
	}
	if n == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoNotificationRepository) Delete(ctx context.Context, recipientID, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "recipient_id": recipientID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
